package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/progress"
	"github.com/noah-isme/tutordesk-api/internal/testsupport"
)

func TestStudentRepositoryCreateAssignsBusinessID(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	first := models.Student{ExternalUserID: "ext-1", Name: "Lin", Status: models.StudentStatusJoined}
	require.NoError(t, repo.Create(ctx, &first))
	require.Equal(t, "S0001", first.BusinessID)

	given := models.Student{BusinessID: "LEGACY-7", ExternalUserID: "ext-2", Name: "Mei", Status: models.StudentStatusJoined}
	require.NoError(t, repo.Create(ctx, &given))
	require.Equal(t, "LEGACY-7", given.BusinessID)

	loaded, err := repo.GetByBusinessID(ctx, "S0001")
	require.NoError(t, err)
	require.Equal(t, first.ID, loaded.ID)

	duplicate := models.Student{ExternalUserID: "ext-1", Name: "Other", Status: models.StudentStatusJoined}
	err = repo.Create(ctx, &duplicate)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "expected duplicate key, got %v", err)
}

func TestStudentRepositorySearchRanksExactMatchesFirst(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	testsupport.CreateStudent(t, db, "u-100", "Annabel")
	exact := testsupport.CreateStudent(t, db, "u-200", "Anna")
	archived := testsupport.CreateStudent(t, db, "u-300", "Anna Archived")
	require.NoError(t, repo.UpdateFields(ctx, archived.ID, map[string]interface{}{"status": models.StudentStatusArchived}))

	results, err := repo.Search(ctx, "anna", 20)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, exact.ID, results[0].ID)

	byExternal, err := repo.Search(ctx, "u-100", 20)
	require.NoError(t, err)
	require.Len(t, byExternal, 1)
	require.Equal(t, "Annabel", byExternal[0].Name)
}

func TestStudentRepositoryListFiltersGroupsAndSorts(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	slow := testsupport.CreateStudent(t, db, "u-1", "Slow")
	fast := testsupport.CreateStudent(t, db, "u-2", "Fast")
	require.NoError(t, repo.UpdateFields(ctx, fast.ID, map[string]interface{}{"learning_progress": 9}))
	require.NoError(t, repo.UpdateFields(ctx, slow.ID, map[string]interface{}{"learning_progress": 2, "groups_json": datatypes.JSON(`["advanced"]`)}))

	students, total, err := repo.List(ctx, StudentFilter{Sort: "progress", Order: "desc", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, fast.ID, students[0].ID)

	students, total, err = repo.List(ctx, StudentFilter{Group: models.GroupAdvanced, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, slow.ID, students[0].ID)
}

func TestStudentRepositoryListStaleSkipsRecentFeedback(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewStudentRepository(db)
	feedbackRepo := NewFeedbackRepository(db)
	ctx := context.Background()

	teacher := testsupport.CreateUser(t, db, "t1", models.RoleTeacher)
	quiet := testsupport.CreateStudent(t, db, "u-1", "Quiet")
	busy := testsupport.CreateStudent(t, db, "u-2", "Busy")

	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.Student{}).Where("id IN ?", []uint{quiet.ID, busy.ID}).Update("created_at", old).Error)
	require.NoError(t, feedbackRepo.Create(ctx, &models.Feedback{ReplyTime: time.Now(), StudentID: busy.ID, TeacherID: teacher.ID}))

	stale, err := repo.ListStale(ctx, time.Now().Add(-14*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, quiet.ID, stale[0].ID)
}

func TestFeedbackRepositoryMarkPushedIsAtMostOnce(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	author := testsupport.CreateUser(t, db, "author", models.RoleTeacher)
	other := testsupport.CreateUser(t, db, "other", models.RoleTeacher)
	student := testsupport.CreateStudent(t, db, "u-1", "Lin")

	mine := models.Feedback{ReplyTime: time.Now(), StudentID: student.ID, TeacherID: author.ID}
	mine.SetDelta([]progress.Marker{progress.NewMarker(3)})
	theirs := models.Feedback{ReplyTime: time.Now(), StudentID: student.ID, TeacherID: other.ID}
	require.NoError(t, repo.Create(ctx, &mine))
	require.NoError(t, repo.Create(ctx, &theirs))

	selector := FeedbackSelector{TeacherID: author.ID, IDs: []uint{mine.ID, theirs.ID}}
	updated, err := repo.MarkPushed(ctx, selector, PushResearch, "first")
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)

	updated, err = repo.MarkPushed(ctx, selector, PushResearch, "second")
	require.NoError(t, err)
	require.Zero(t, updated)

	reloaded, err := repo.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	require.Equal(t, "first", reloaded.PushResearch)
	require.Empty(t, reloaded.PushOps)
	require.Equal(t, []progress.Marker{"3"}, reloaded.Delta())

	untouched, err := repo.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	require.Empty(t, untouched.PushResearch)
}

func TestFeedbackRepositoryLatestForStudents(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	teacher := testsupport.CreateUser(t, db, "t1", models.RoleTeacher)
	student := testsupport.CreateStudent(t, db, "u-1", "Lin")

	require.NoError(t, repo.Create(ctx, &models.Feedback{ReplyTime: time.Now().Add(-time.Hour), StudentID: student.ID, TeacherID: teacher.ID, TeacherComment: "older"}))
	require.NoError(t, repo.Create(ctx, &models.Feedback{ReplyTime: time.Now(), StudentID: student.ID, TeacherID: teacher.ID, TeacherComment: "newer"}))

	latest, err := repo.LatestForStudents(ctx, []uint{student.ID})
	require.NoError(t, err)
	require.Equal(t, "newer", latest[student.ID].TeacherComment)
}

func TestTeachingTaskRepositoryActivePairIsUnique(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewTeachingTaskRepository(db)
	ctx := context.Background()

	researcher := testsupport.CreateUser(t, db, "r1", models.RoleResearcher)
	teacher := testsupport.CreateUser(t, db, "t1", models.RoleTeacher)
	student := testsupport.CreateStudent(t, db, "u-1", "Lin")

	newTask := func(id string) *models.TeachingTask {
		return &models.TeachingTask{TaskID: id, StudentID: student.ID, TeacherID: teacher.ID, ResearcherID: researcher.ID, Status: models.TaskStatusPending, AssignedAt: time.Now()}
	}

	require.NoError(t, repo.Create(ctx, newTask("TASK_A")))
	err := repo.Create(ctx, newTask("TASK_B"))
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "expected duplicate key, got %v", err)

	completed, err := repo.CompleteActive(ctx, student.ID, teacher.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), completed)

	require.NoError(t, repo.Create(ctx, newTask("TASK_C")))
}

func TestTeachingTaskRepositoryCancelOnlyTouchesOwnTasks(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewTeachingTaskRepository(db)
	ctx := context.Background()

	researcher := testsupport.CreateUser(t, db, "r1", models.RoleResearcher)
	mine := testsupport.CreateUser(t, db, "t1", models.RoleTeacher)
	theirs := testsupport.CreateUser(t, db, "t2", models.RoleTeacher)
	student := testsupport.CreateStudent(t, db, "u-1", "Lin")

	require.NoError(t, repo.Create(ctx, &models.TeachingTask{TaskID: "TASK_MINE", StudentID: student.ID, TeacherID: mine.ID, ResearcherID: researcher.ID, Status: models.TaskStatusPending, AssignedAt: time.Now()}))
	require.NoError(t, repo.Create(ctx, &models.TeachingTask{TaskID: "TASK_THEIRS", StudentID: student.ID, TeacherID: theirs.ID, ResearcherID: researcher.ID, Status: models.TaskStatusPending, AssignedAt: time.Now()}))

	cancelled, err := repo.CancelActive(ctx, mine.ID, []string{"TASK_MINE", "TASK_THEIRS"})
	require.NoError(t, err)
	require.Equal(t, int64(1), cancelled)

	other, err := repo.GetByTaskID(ctx, "TASK_THEIRS")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, other.Status)

	stats, err := repo.StatsByTeacher(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, int64(1), stats[0].Cancelled)
	require.Equal(t, int64(1), stats[1].Pending)
	require.Equal(t, int64(1), stats[1].DistinctStudents)
}

func TestOpsTaskRepositoryStatusAndVisits(t *testing.T) {
	db := testsupport.NewDB(t)
	repo := NewOpsTaskRepository(db)
	ctx := context.Background()

	student := testsupport.CreateStudent(t, db, "u-1", "Lin")
	task := models.OpsTask{TaskID: "OPS-S0001-1", StudentID: student.ID, StudentName: "Lin", Source: models.OpsSourceManual, TaskStatus: models.OpsStatusPending}
	require.NoError(t, repo.Create(ctx, &task))

	open, err := repo.HasOpen(ctx, student.ID)
	require.NoError(t, err)
	require.True(t, open)

	require.NoError(t, repo.UpdateStatus(ctx, task.ID, models.OpsStatusClosed, true))

	open, err = repo.HasOpen(ctx, student.ID)
	require.NoError(t, err)
	require.False(t, open)

	reloaded, err := repo.GetByTaskID(ctx, task.TaskID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.VisitCount)

	tasks, total, err := repo.List(ctx, OpsTaskFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, tasks)

	_, total, err = repo.List(ctx, OpsTaskFilter{IncludeClosed: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	require.ErrorIs(t, repo.UpdateStatus(ctx, 999, models.OpsStatusClosed, false), gorm.ErrRecordNotFound)
}

func TestStoreRollsBackOnError(t *testing.T) {
	db := testsupport.NewDB(t)
	store := NewStore(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(tx Repositories) error {
		student := models.Student{ExternalUserID: "ext-1", Name: "Lin", Status: models.StudentStatusJoined}
		if err := tx.Students.Create(ctx, &student); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Repos().Students.GetByExternalID(ctx, "ext-1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
