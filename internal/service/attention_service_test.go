package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/testsupport"
)

func boolPtr(value bool) *bool {
	return &value
}

func TestAttentionSetFlagRecordsProvenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := NewAttentionService(f.store, f.validate, f.activity, f.events, zerolog.Nop())

	flagged, err := svc.SetFlag(ctx, NewActor(f.operator), student.ID, dto.AttentionRequest{IsDifficult: boolPtr(true), Source: models.DifficultySourceTeacher})
	require.NoError(t, err)
	require.True(t, flagged.IsDifficult)
	require.Equal(t, models.DifficultySourceTeacher, flagged.DifficultySource)
	require.Equal(t, models.LearningStatusAttention, flagged.LearningStatus)

	cleared, err := svc.SetFlag(ctx, NewActor(f.researcher), student.ID, dto.AttentionRequest{IsDifficult: boolPtr(false)})
	require.NoError(t, err)
	require.False(t, cleared.IsDifficult)
	require.Empty(t, cleared.DifficultySource)
	require.Equal(t, models.LearningStatusNormal, cleared.LearningStatus)

	require.Contains(t, f.events.types(), EventStudentFlagged)
}

func TestAttentionSetFlagNormalisesSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := NewAttentionService(f.store, f.validate, f.activity, f.events, zerolog.Nop())

	flagged, err := svc.SetFlag(ctx, NewActor(f.researcher), student.ID, dto.AttentionRequest{IsDifficult: boolPtr(true), Source: " Teacher "})
	require.NoError(t, err)
	require.Equal(t, models.DifficultySourceTeacher, flagged.DifficultySource)

	_, err = svc.SetFlag(ctx, NewActor(f.researcher), student.ID, dto.AttentionRequest{IsDifficult: boolPtr(false), Source: "parent"})
	require.ErrorIs(t, err, ErrInvalidSource)
	require.True(t, IsValidation(err))
	require.True(t, f.reload(t, student.ID).IsDifficult)
}

func TestAttentionSetFlagRejectsTeachersAndUnknownStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := NewAttentionService(f.store, f.validate, f.activity, f.events, zerolog.Nop())

	_, err := svc.SetFlag(ctx, NewActor(f.teacher), student.ID, dto.AttentionRequest{IsDifficult: boolPtr(true)})
	require.ErrorIs(t, err, ErrPermission)
	require.False(t, f.reload(t, student.ID).IsDifficult)

	_, err = svc.SetFlag(ctx, NewActor(f.admin), student.ID, dto.AttentionRequest{IsDifficult: boolPtr(true)})
	require.ErrorIs(t, err, ErrPermission)

	_, err = svc.SetFlag(ctx, NewActor(f.researcher), 9999, dto.AttentionRequest{IsDifficult: boolPtr(true)})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestAttentionListFlaggedJoinsLatestFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lin := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	testsupport.CreateStudent(t, f.db, "ext-2", "Mei")
	svc := NewAttentionService(f.store, f.validate, f.activity, f.events, zerolog.Nop())

	submitOne(t, f, f.teacher, lin, "1")
	_, err := f.feedback().Submit(ctx, NewActor(f.other), dto.SubmitFeedbackRequest{
		Feedbacks: []dto.FeedbackItemRequest{{StudentID: lin.BusinessID, LessonProgress: "2", TeacherComment: "struggling with chords"}},
	})
	require.NoError(t, err)

	_, err = svc.SetFlag(ctx, NewActor(f.researcher), lin.ID, dto.AttentionRequest{IsDifficult: boolPtr(true)})
	require.NoError(t, err)

	items, err := svc.ListFlagged(ctx, NewActor(f.researcher))
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, lin.BusinessID, items[0].StudentID)
	require.Equal(t, "struggling with chords", items[0].LatestComment)
	require.Equal(t, f.other.DisplayName(), items[0].LatestTeacher)
	require.NotNil(t, items[0].LatestReplyTime)
	require.Equal(t, models.DifficultySourceResearcher, items[0].DifficultySource)
}

func TestAttentionSweepFlagsStaleStudentsAsSystem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	recent := testsupport.CreateStudent(t, f.db, "ext-2", "Mei")
	fresh := testsupport.CreateStudent(t, f.db, "ext-3", "Tao")

	month := time.Now().AddDate(0, 0, -30)
	require.NoError(t, f.db.Model(&models.Student{}).Where("id IN ?", []uint{stale.ID, recent.ID}).Update("created_at", month).Error)
	submitOne(t, f, f.teacher, recent, "1")

	svc := NewAttentionService(f.store, f.validate, f.activity, f.events, zerolog.Nop())
	flagged, err := svc.Sweep(ctx, 14*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, flagged)

	reloaded := f.reload(t, stale.ID)
	require.True(t, reloaded.IsDifficult)
	require.Equal(t, models.DifficultySourceSystem, reloaded.DifficultySource)
	require.False(t, f.reload(t, recent.ID).IsDifficult)
	require.False(t, f.reload(t, fresh.ID).IsDifficult)

	again, err := svc.Sweep(ctx, 14*24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, again)
}

func TestStudentNotesAreRoleOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testsupport.CreateStudent(t, f.db, "ext-1", "Lin")
	svc := NewStudentNoteService(f.store, f.validate, f.activity, f.events, zerolog.Nop())

	resp, err := svc.SetResearchNote(ctx, NewActor(f.researcher), student.ID, dto.NoteRequest{Note: "focus on <i>sight reading</i>"})
	require.NoError(t, err)
	require.Equal(t, "focus on sight reading", resp.ResearchNote)

	_, err = svc.SetResearchNote(ctx, NewActor(f.operator), student.ID, dto.NoteRequest{Note: "overwrite"})
	require.ErrorIs(t, err, ErrPermission)

	resp, err = svc.SetOpsNote(ctx, NewActor(f.operator), student.ID, dto.NoteRequest{Note: "prefers evening calls"})
	require.NoError(t, err)
	require.Equal(t, "prefers evening calls", resp.OpsNote)
	require.Equal(t, "focus on sight reading", resp.ResearchNote)

	resp, err = svc.SetOpsNote(ctx, NewActor(f.operator), student.ID, dto.NoteRequest{Note: ""})
	require.NoError(t, err)
	require.Empty(t, resp.OpsNote)

	_, err = svc.SetOpsNote(ctx, NewActor(f.operator), 9999, dto.NoteRequest{Note: "x"})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestFreeTextKeepsTypedCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notes := NewStudentNoteService(f.store, f.validate, f.activity, f.events, zerolog.Nop())

	created, err := f.students().Create(ctx, NewActor(f.operator), dto.StudentCreateRequest{ExternalUserID: "wx-001", StudentName: "O'Brien", AliasName: "<b>Rock & Roll</b>"})
	require.NoError(t, err)
	require.Equal(t, "O'Brien", created.StudentName)
	require.Equal(t, "Rock & Roll", created.AliasName)

	resp, err := notes.SetResearchNote(ctx, NewActor(f.researcher), created.ID, dto.NoteRequest{Note: "rhythm & pitch"})
	require.NoError(t, err)
	require.Equal(t, "rhythm & pitch", resp.ResearchNote)
	require.Equal(t, "rhythm & pitch", f.reload(t, created.ID).ResearchNote)

	manual, err := f.feedback().Manual(ctx, NewActor(f.teacher), dto.ManualFeedbackRequest{StudentName: "O'Brien", LessonProgress: "1", TeacherComment: "scales & arpeggios"})
	require.NoError(t, err)
	require.Equal(t, created.StudentID, manual.StudentID)
	require.Equal(t, "O'Brien", manual.StudentName)

	var stored models.Feedback
	require.NoError(t, f.db.First(&stored, manual.FeedbackID).Error)
	require.Equal(t, "scales & arpeggios", stored.TeacherComment)
}
