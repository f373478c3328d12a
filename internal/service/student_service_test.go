package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/progress"
	"github.com/noah-isme/tutordesk-api/internal/testsupport"
	"github.com/noah-isme/tutordesk-api/pkg/spreadsheet"
)

func (f *fixture) students() StudentService {
	return NewStudentService(f.store, f.validate, StudentSearchConfig{}, f.activity, f.events, zerolog.Nop())
}

func TestStudentSearchHonoursMinimumLength(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.CreateStudent(t, f.db, "ext-1", "Anna")
	svc := f.students()

	short, err := svc.Search(ctx, NewActor(f.teacher), " a ")
	require.NoError(t, err)
	require.Empty(t, short)

	hits, err := svc.Search(ctx, NewActor(f.teacher), "an")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "S0001", hits[0].StudentID)

	_, err = svc.Search(ctx, Actor{ID: 42}, "anna")
	require.ErrorIs(t, err, ErrPermission)
}

func TestStudentCreateAppliesDefaultsAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.students()

	created, err := svc.Create(ctx, NewActor(f.operator), dto.StudentCreateRequest{ExternalUserID: "wx-001", StudentName: "Lin"})
	require.NoError(t, err)
	require.Equal(t, "S0001", created.StudentID)
	require.Equal(t, models.StudentStatusJoined, created.Status)
	require.Equal(t, []string{models.GroupBasic}, created.Groups)
	require.Empty(t, created.Progress)

	_, err = svc.Create(ctx, NewActor(f.operator), dto.StudentCreateRequest{ExternalUserID: "wx-001", StudentName: "Copy"})
	require.ErrorIs(t, err, ErrDuplicateStudent)

	_, err = svc.Create(ctx, NewActor(f.operator), dto.StudentCreateRequest{ExternalUserID: "wx-002", StudentName: "Mei", Groups: []string{"jazz"}})
	require.True(t, IsValidation(err))

	_, err = svc.Create(ctx, NewActor(f.teacher), dto.StudentCreateRequest{ExternalUserID: "wx-003", StudentName: "Tao"})
	require.ErrorIs(t, err, ErrPermission)
	require.Equal(t, int64(1), f.count(t, &models.Student{}, ""))
}

func TestStudentUpdateChangesMutableFieldsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := f.students()

	name := "Lin Xiao"
	status := models.StudentStatusActive
	teacherID := f.teacher.ID
	updated, err := svc.Update(ctx, NewActor(f.operator), student.ID, dto.StudentUpdateRequest{
		StudentName:       &name,
		Status:            &status,
		Groups:            []string{models.GroupAdvanced, models.GroupEarTraining, models.GroupAdvanced},
		AssignedTeacherID: &teacherID,
	})
	require.NoError(t, err)
	require.Equal(t, "Lin Xiao", updated.StudentName)
	require.Equal(t, models.StudentStatusActive, updated.Status)
	require.Equal(t, []string{models.GroupAdvanced, models.GroupEarTraining}, updated.Groups)
	require.Equal(t, f.teacher.DisplayName(), updated.AssignedTeacher)
	require.Equal(t, student.BusinessID, updated.StudentID)
	require.Equal(t, student.ExternalUserID, updated.ExternalUserID)

	operatorID := f.operator.ID
	_, err = svc.Update(ctx, NewActor(f.operator), student.ID, dto.StudentUpdateRequest{AssignedTeacherID: &operatorID})
	require.ErrorIs(t, err, ErrNotATeacher)

	_, err = svc.Update(ctx, NewActor(f.operator), 9999, dto.StudentUpdateRequest{StudentName: &name})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentGetIncludesRecentActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	for i := 0; i < 6; i++ {
		submitOne(t, f, f.teacher, student, "1")
	}

	ops := f.ops()
	_, err := ops.CreateVisit(ctx, NewActor(f.operator), dto.VisitRecordCreateRequest{StudentID: student.BusinessID, VisitStatus: models.OpsStatusContacted, VisitNote: "called"})
	require.NoError(t, err)

	detail, err := f.students().Get(ctx, NewActor(f.operator), student.ID)
	require.NoError(t, err)
	require.Len(t, detail.RecentFeedback, 5)
	require.Len(t, detail.RecentVisits, 1)
	require.Equal(t, progress.NewMarker(1), detail.Student.CurrentProgress)
	require.Zero(t, detail.OpsTaskCount)
}

func TestStudentListFiltersAndArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lin := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	testsupport.CreateStudent(t, f.db, "ext-2", "Mei")
	svc := f.students()

	require.NoError(t, svc.Archive(ctx, NewActor(f.operator), lin.ID))
	require.ErrorIs(t, svc.Archive(ctx, NewActor(f.operator), 9999), ErrStudentNotFound)

	list, err := svc.List(ctx, NewActor(f.operator), dto.StudentListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "Mei", list.Items[0].StudentName)

	archived, err := svc.List(ctx, NewActor(f.operator), dto.StudentListRequest{Status: models.StudentStatusArchived})
	require.NoError(t, err)
	require.Len(t, archived.Items, 1)
	require.Equal(t, lin.ID, archived.Items[0].ID)
	require.Equal(t, int64(1), f.count(t, &models.Student{}, "id = ?", lin.ID))
}

func TestStudentImportCreatesAndRenames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.CreateStudent(t, f.db, "wx-1", "Old Name")
	svc := f.students()

	workbook, err := spreadsheet.Write(spreadsheet.Table{
		Headers: []string{spreadsheet.HeaderNickname, spreadsheet.HeaderExternalID},
		Rows: [][]interface{}{
			{"New Name", "wx-1"},
			{"Mei", "wx-2"},
			{"No Id", ""},
		},
	})
	require.NoError(t, err)

	result, err := svc.Import(ctx, NewActor(f.operator), workbook)
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)

	var renamed models.Student
	require.NoError(t, f.db.Where("external_user_id = ?", "wx-1").First(&renamed).Error)
	require.Equal(t, "New Name", renamed.Name)

	_, err = svc.Import(ctx, NewActor(f.operator), []byte("plain text, not a workbook"))
	require.True(t, IsValidation(err))
}
