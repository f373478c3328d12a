package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/progress"
	"github.com/noah-isme/tutordesk-api/internal/testsupport"
)

func markers(values ...int) []progress.Marker {
	out := make([]progress.Marker, 0, len(values))
	for _, value := range values {
		out = append(out, progress.NewMarker(value))
	}
	return out
}

func TestFeedbackSubmitMergesProgressAndCompletesTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	require.Equal(t, "S0001", student.BusinessID)
	student.SetProgress(markers(1, 2, 3))
	require.NoError(t, f.db.Model(&student).Update("progress_json", student.Progress).Error)

	tasks := f.tasks()
	assigned, created, err := tasks.Assign(ctx, NewActor(f.researcher), student.ID, f.teacher.ID, "scales review")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, models.TaskStatusPending, assigned.Status)

	resp, err := f.feedback().Submit(ctx, NewActor(f.teacher), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: "S0001", LessonProgress: "3,4", TeacherComment: "good <b>tempo</b>"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, int64(1), resp.CompletedTasks)

	reloaded := f.reload(t, student.ID)
	require.Equal(t, markers(1, 2, 3, 4), reloaded.ProgressMarkers())
	require.Equal(t, progress.NewMarker(4), reloaded.CurrentProgress())
	require.Equal(t, 4, reloaded.LearningProgress)
	require.Equal(t, 40, reloaded.CoursePercent())

	var task models.TeachingTask
	require.NoError(t, f.db.Where("task_id = ?", assigned.TaskID).First(&task).Error)
	require.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)

	var row models.Feedback
	require.NoError(t, f.db.First(&row, resp.FeedbackIDs[0]).Error)
	require.Equal(t, markers(3, 4), row.Delta())
	require.Equal(t, "S0001", row.StudentCode)
	require.Equal(t, "Lin", row.StudentName)
	require.Equal(t, f.teacher.DisplayName(), row.TeacherName)
	require.Equal(t, "good tempo", row.TeacherComment)

	require.Contains(t, f.events.types(), EventFeedbackSubmitted)
}

func TestFeedbackSubmitIsIdempotentOnHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := f.feedback()

	req := dto.SubmitFeedbackRequest{Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: "2,5", TeacherComment: "ok"}}}
	_, err := svc.Submit(ctx, NewActor(f.teacher), req)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, NewActor(f.teacher), req)
	require.NoError(t, err)

	reloaded := f.reload(t, student.ID)
	require.Equal(t, markers(2, 5), reloaded.ProgressMarkers())
	require.Equal(t, int64(2), f.count(t, &models.Feedback{}, "student_id = ?", student.ID))
}

func TestFeedbackSubmitLeavesOtherTeachersTaskOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	tasks := f.tasks()

	mine, _, err := tasks.Assign(ctx, NewActor(f.researcher), student.ID, f.teacher.ID, "")
	require.NoError(t, err)
	theirs, _, err := tasks.Assign(ctx, NewActor(f.researcher), student.ID, f.other.ID, "")
	require.NoError(t, err)

	_, err = f.feedback().Submit(ctx, NewActor(f.teacher), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: "1", TeacherComment: "first lesson"}},
	})
	require.NoError(t, err)

	var closed, open models.TeachingTask
	require.NoError(t, f.db.Where("task_id = ?", mine.TaskID).First(&closed).Error)
	require.NoError(t, f.db.Where("task_id = ?", theirs.TaskID).First(&open).Error)
	require.Equal(t, models.TaskStatusCompleted, closed.Status)
	require.Equal(t, models.TaskStatusPending, open.Status)
}

func TestFeedbackSubmitRejectsNonTeacherWithoutWriting(t *testing.T) {
	f := newFixture(t)
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")

	_, err := f.feedback().Submit(context.Background(), NewActor(f.researcher), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: "1", TeacherComment: "x"}},
	})
	require.ErrorIs(t, err, ErrPermission)
	require.Zero(t, f.count(t, &models.Feedback{}, ""))
	require.Empty(t, f.reload(t, student.ID).ProgressMarkers())
}

func TestFeedbackSubmitValidatesWholeBatchFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := f.feedback()

	_, err := svc.Submit(ctx, NewActor(f.teacher), dto.SubmitFeedbackRequest{Feedbacks: []dto.FeedbackItemRequest{
		{StudentID: student.BusinessID, LessonProgress: "1", TeacherComment: "fine"},
		{StudentID: "S9999", LessonProgress: "1", TeacherComment: "unknown"},
	}})
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = svc.Submit(ctx, NewActor(f.teacher), dto.SubmitFeedbackRequest{Feedbacks: []dto.FeedbackItemRequest{
		{StudentID: student.BusinessID, LessonProgress: "1,two", TeacherComment: "fine"},
	}})
	require.True(t, IsValidation(err), "expected validation error, got %v", err)

	require.Zero(t, f.count(t, &models.Feedback{}, ""))
	require.Empty(t, f.reload(t, student.ID).ProgressMarkers())
}

func TestFeedbackSubmitKeepsUnreadableHistory(t *testing.T) {
	f := newFixture(t)
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	require.NoError(t, f.db.Model(&models.Student{}).Where("id = ?", student.ID).Update("progress_json", "[1,2,").Error)

	_, err := f.feedback().Submit(context.Background(), NewActor(f.teacher), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: "3", TeacherComment: "x"}},
	})
	require.ErrorIs(t, err, progress.ErrCorruptHistory)
	require.False(t, IsValidation(err))
	require.Zero(t, f.count(t, &models.Feedback{}, ""))
	require.Equal(t, "[1,2,", string(f.reload(t, student.ID).Progress))
}

func TestFeedbackManualMatchesByNameWithoutCompletingTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.CreateStudent(t, f.db, "ext-1", "Annabel")
	exact := testsupport.CreateStudent(t, f.db, "ext-2", "Anna")

	task, _, err := f.tasks().Assign(ctx, NewActor(f.researcher), exact.ID, f.teacher.ID, "")
	require.NoError(t, err)

	resp, err := f.feedback().Manual(ctx, NewActor(f.teacher), dto.ManualFeedbackRequest{
		StudentName:    "anna",
		LessonProgress: "3, warmup",
		TeacherComment: "manual entry",
	})
	require.NoError(t, err)
	require.Equal(t, exact.BusinessID, resp.StudentID)
	require.Equal(t, []progress.Marker{"3", "warmup"}, resp.Progress)
	require.Equal(t, progress.Marker("warmup"), resp.CurrentProgress)

	var stored models.TeachingTask
	require.NoError(t, f.db.Where("task_id = ?", task.TaskID).First(&stored).Error)
	require.Equal(t, models.TaskStatusPending, stored.Status)

	_, err = f.feedback().Manual(ctx, NewActor(f.teacher), dto.ManualFeedbackRequest{
		StudentName: "nobody", LessonProgress: "1", TeacherComment: "x",
	})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestFeedbackMonitorDefaultsToCurrentWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")

	_, err := f.feedback().Submit(ctx, NewActor(f.teacher), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: "1", TeacherComment: "this week"}},
	})
	require.NoError(t, err)

	old := models.Feedback{
		ReplyTime:      time.Now().AddDate(0, 0, -30),
		StudentID:      student.ID,
		StudentCode:    student.BusinessID,
		StudentName:    student.Name,
		TeacherID:      f.teacher.ID,
		TeacherName:    f.teacher.DisplayName(),
		TeacherComment: "last month",
	}
	old.SetDelta(markers(1))
	require.NoError(t, f.db.Create(&old).Error)

	svc := f.feedback()
	current, err := svc.Monitor(ctx, NewActor(f.researcher), dto.FeedbackMonitorRequest{})
	require.NoError(t, err)
	require.Len(t, current.Items, 1)
	require.Equal(t, "this week", current.Items[0].TeacherComment)

	byKeyword, err := svc.Monitor(ctx, NewActor(f.researcher), dto.FeedbackMonitorRequest{Keyword: "month"})
	require.NoError(t, err)
	require.Len(t, byKeyword.Items, 1)

	_, err = svc.Monitor(ctx, NewActor(f.teacher), dto.FeedbackMonitorRequest{})
	require.True(t, errors.Is(err, ErrPermission))
}

func TestWeekBoundsStartOnMonday(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)
	from, to := weekBounds(sunday)
	require.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), to)
}

func TestFeedbackListMinePaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := f.feedback()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, NewActor(f.teacher), dto.SubmitFeedbackRequest{
			Feedbacks: []dto.FeedbackItemRequest{{StudentID: student.BusinessID, LessonProgress: "1", TeacherComment: "again"}},
		})
		require.NoError(t, err)
	}

	page, err := svc.ListMine(ctx, NewActor(f.teacher), 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(3), page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)

	empty, err := svc.ListMine(ctx, NewActor(f.other), 1, 10)
	require.NoError(t, err)
	require.Empty(t, empty.Items)
}
