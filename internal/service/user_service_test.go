package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
)

func TestUserServiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewUserService(f.store.Repos().Users, f.validate, f.activity, zerolog.Nop())
	admin := NewActor(f.admin)

	created, err := svc.Create(ctx, admin, dto.UserCreateRequest{Username: "teacher.sun", RealName: "Sun", Phone: "13800000000", Roles: []string{"teacher", "researcher", "teacher"}})
	require.NoError(t, err)
	require.Equal(t, []string{"researcher", "teacher"}, created.Roles)
	require.True(t, created.IsActive)

	_, err = svc.Create(ctx, admin, dto.UserCreateRequest{Username: "teacher.sun", Roles: []string{"teacher"}})
	require.ErrorIs(t, err, ErrDuplicateUser)

	_, err = svc.Create(ctx, admin, dto.UserCreateRequest{Username: "nobody", Roles: []string{"janitor"}})
	require.True(t, IsValidation(err))

	updated, err := svc.UpdateRoles(ctx, admin, created.ID, dto.UserRolesRequest{Roles: []string{"operator"}})
	require.NoError(t, err)
	require.Equal(t, []string{"operator"}, updated.Roles)

	actor, err := svc.ResolveActor(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, actor.Has(models.RoleOperator))
	require.False(t, actor.Has(models.RoleTeacher))
	require.Equal(t, "Sun", actor.Name)

	require.NoError(t, svc.Deactivate(ctx, admin, created.ID))
	_, err = svc.ResolveActor(ctx, created.ID)
	require.ErrorIs(t, err, ErrInactiveUser)

	require.True(t, IsValidation(svc.Deactivate(ctx, admin, f.admin.ID)))
	require.ErrorIs(t, svc.Deactivate(ctx, admin, 9999), ErrUserNotFound)

	teachers, err := svc.List(ctx, admin, dto.UserListRequest{Role: "teacher"})
	require.NoError(t, err)
	require.Len(t, teachers.Items, 2)

	_, err = svc.List(ctx, NewActor(f.researcher), dto.UserListRequest{})
	require.ErrorIs(t, err, ErrPermission)

	entries, err := f.activity.List(ctx, admin, dto.AdminActivityListRequest{Action: "user.created"})
	require.NoError(t, err)
	require.Len(t, entries.Items, 1)
	require.Equal(t, "***", entries.Items[0].Metadata["phone"])
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewUserService(f.store.Repos().Users, f.validate, f.activity, zerolog.Nop())

	created, err := svc.EnsureAdmin(ctx, "root")
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "root")
	require.NoError(t, err)
	require.False(t, created)

	user, err := f.store.Repos().Users.GetByUsername(ctx, "root")
	require.NoError(t, err)
	require.True(t, user.HasRole(models.RoleAdmin))

	created, err = svc.EnsureAdmin(ctx, "  ")
	require.NoError(t, err)
	require.False(t, created)
}
