package service

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/repository"
	"github.com/noah-isme/tutordesk-api/internal/testsupport"
)

type publishedEvent struct {
	Type    string
	ActorID uint
	Payload map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, actorID uint, payload map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, ActorID: actorID, Payload: payload})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type fixture struct {
	db         *gorm.DB
	store      repository.Store
	validate   *validator.Validate
	events     *recordingPublisher
	activity   ActivityService
	teacher    models.User
	other      models.User
	researcher models.User
	operator   models.User
	admin      models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testsupport.NewDB(t)
	store := repository.NewStore(db)
	return &fixture{
		db:         db,
		store:      store,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		events:     &recordingPublisher{},
		activity:   NewActivityService(store.Repos().Activity, zerolog.Nop()),
		teacher:    testsupport.CreateUser(t, db, "teacher.wang", models.RoleTeacher),
		other:      testsupport.CreateUser(t, db, "teacher.li", models.RoleTeacher),
		researcher: testsupport.CreateUser(t, db, "research.zhao", models.RoleResearcher),
		operator:   testsupport.CreateUser(t, db, "ops.chen", models.RoleOperator),
		admin:      testsupport.CreateUser(t, db, "admin", models.RoleAdmin),
	}
}

func (f *fixture) tasks() TeachingTaskService {
	return NewTeachingTaskService(f.store, f.validate, nil, f.activity, f.events, zerolog.Nop())
}

func (f *fixture) feedback() FeedbackService {
	return NewFeedbackService(f.store, f.tasks(), f.validate, nil, FeedbackConfig{}, f.activity, f.events, zerolog.Nop())
}

func (f *fixture) push() FeedbackPushService {
	return NewFeedbackPushService(f.store, f.validate, f.activity, f.events, zerolog.Nop())
}

func (f *fixture) reload(t *testing.T, studentID uint) models.Student {
	t.Helper()
	var student models.Student
	if err := f.db.First(&student, studentID).Error; err != nil {
		t.Fatalf("reload student %d: %v", studentID, err)
	}
	return student
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var total int64
	tx := f.db.Model(model)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	if err := tx.Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return total
}
