package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups every repository bound to the same database handle.
type Repositories struct {
	Users    UserRepository
	Students StudentRepository
	Feedback FeedbackRepository
	Tasks    TeachingTaskRepository
	OpsTasks OpsTaskRepository
	Visits   VisitRecordRepository
	Activity ActivityLogRepository
}

// NewRepositories binds all repositories to db.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:    NewUserRepository(db),
		Students: NewStudentRepository(db),
		Feedback: NewFeedbackRepository(db),
		Tasks:    NewTeachingTaskRepository(db),
		OpsTasks: NewOpsTaskRepository(db),
		Visits:   NewVisitRecordRepository(db),
		Activity: NewActivityLogRepository(db),
	}
}

// Store runs compound mutations atomically.
type Store interface {
	Repos() Repositories
	WithinTransaction(ctx context.Context, fn func(tx Repositories) error) error
}

type gormStore struct {
	db    *gorm.DB
	repos Repositories
}

// NewStore constructs a transactional store over db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, repos: NewRepositories(db)}
}

func (s *gormStore) Repos() Repositories {
	return s.repos
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
func (s *gormStore) WithinTransaction(ctx context.Context, fn func(tx Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}
