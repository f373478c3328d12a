package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/testsupport"
)

func submitOne(t *testing.T, f *fixture, teacher models.User, student models.Student, lessons string) uint {
	t.Helper()
	resp, err := f.feedback().Submit(context.Background(), NewActor(teacher), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: lessons, TeacherComment: "notes"}},
	})
	require.NoError(t, err)
	return resp.FeedbackIDs[0]
}

func TestPushToResearchIsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	first := submitOne(t, f, f.teacher, student, "1")
	second := submitOne(t, f, f.teacher, student, "2")
	svc := f.push()

	resp, err := svc.PushToResearch(ctx, NewActor(f.teacher), dto.PushRequest{FeedbackIDs: []uint{first}, Note: "needs review"})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.Updated)

	resp, err = svc.PushToResearch(ctx, NewActor(f.teacher), dto.PushRequest{FeedbackIDs: []uint{first, second}, Note: "second try"})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.Updated)

	var rows []models.Feedback
	require.NoError(t, f.db.Order("id ASC").Find(&rows).Error)
	require.Equal(t, "needs review", rows[0].PushResearch)
	require.Equal(t, "second try", rows[1].PushResearch)
	require.Empty(t, rows[0].PushOps)
}

func TestPushSkipsOtherTeachersFeedback(t *testing.T) {
	f := newFixture(t)
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	foreign := submitOne(t, f, f.other, student, "1")

	resp, err := f.push().PushToResearch(context.Background(), NewActor(f.teacher), dto.PushRequest{FeedbackIDs: []uint{foreign}, Note: "not mine"})
	require.NoError(t, err)
	require.Zero(t, resp.Updated)

	var row models.Feedback
	require.NoError(t, f.db.First(&row, foreign).Error)
	require.Empty(t, row.PushResearch)
}

func TestPushToOperationsOpensTaskOnEveryPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	id := submitOne(t, f, f.teacher, student, "1")
	svc := f.push()

	first, err := svc.PushToOperations(ctx, NewActor(f.teacher), dto.PushRequest{FeedbackIDs: []uint{id}, Note: "call parents"})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Updated)
	require.Equal(t, 1, first.OpsTasksCreated)
	require.Regexp(t, `^OPS-S0001-[0-9a-f]{8}$`, first.OpsTaskIDs[0])

	second, err := svc.PushToOperations(ctx, NewActor(f.teacher), dto.PushRequest{StudentIDs: []string{student.BusinessID}, Note: "again"})
	require.NoError(t, err)
	require.Zero(t, second.Updated)
	require.Equal(t, 1, second.OpsTasksCreated)

	require.Equal(t, int64(2), f.count(t, &models.OpsTask{}, "student_id = ?", student.ID))

	var row models.Feedback
	require.NoError(t, f.db.First(&row, id).Error)
	require.Equal(t, "call parents", row.PushOps)

	var task models.OpsTask
	require.NoError(t, f.db.Where("task_id = ?", first.OpsTaskIDs[0]).First(&task).Error)
	require.Equal(t, models.OpsSourceTeacher, task.Source)
	require.Equal(t, models.OpsStatusPending, task.TaskStatus)
	require.Equal(t, "Lin", task.StudentName)
}

func TestPushValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.push()

	_, err := svc.PushToResearch(ctx, NewActor(f.teacher), dto.PushRequest{FeedbackIDs: []uint{1}, Note: "   "})
	require.ErrorIs(t, err, ErrEmptyNote)

	_, err = svc.PushToResearch(ctx, NewActor(f.teacher), dto.PushRequest{Note: "note"})
	require.ErrorIs(t, err, ErrEmptySelection)

	_, err = svc.PushToOperations(ctx, NewActor(f.operator), dto.PushRequest{FeedbackIDs: []uint{1}, Note: "note"})
	require.ErrorIs(t, err, ErrPermission)
	require.Zero(t, f.count(t, &models.OpsTask{}, ""))
}
