package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/service"
)

const testSecret = "test-secret"

type stubResolver map[uint]service.Actor

func (s stubResolver) ResolveActor(ctx context.Context, id uint) (service.Actor, error) {
	actor, ok := s[id]
	if !ok {
		return service.Actor{}, service.ErrUserNotFound
	}
	if len(actor.Roles) == 0 {
		return service.Actor{}, service.ErrInactiveUser
	}
	return actor, nil
}

func newAuthApp(resolver ActorResolver, roles ...models.Role) *fiber.App {
	app := fiber.New()
	app.Get("/", JWTProtected(testSecret), ResolveActor(resolver), RequireRole(roles...), func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.Name)
	})
	return app
}

func bearer(t *testing.T, userID uint) string {
	t.Helper()
	token, err := IssueToken(testSecret, userID, nil)
	require.NoError(t, err)
	return "Bearer " + token
}

func doGet(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	resolver := stubResolver{7: {ID: 7, Name: "Wang", Roles: []models.Role{models.RoleTeacher, models.RoleResearcher}}}
	app := newAuthApp(resolver, models.RoleResearcher)

	resp := doGet(t, app, bearer(t, 7))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	resolver := stubResolver{7: {ID: 7, Name: "Wang", Roles: []models.Role{models.RoleTeacher}}}
	app := newAuthApp(resolver, models.RoleAdmin)

	resp := doGet(t, app, bearer(t, 7))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestResolveActorRejectsUnknownAndInactiveUsers(t *testing.T) {
	resolver := stubResolver{8: {ID: 8, Name: "Gone"}}
	app := newAuthApp(resolver, models.RoleTeacher)

	require.Equal(t, fiber.StatusUnauthorized, doGet(t, app, bearer(t, 99)).StatusCode)
	require.Equal(t, fiber.StatusForbidden, doGet(t, app, bearer(t, 8)).StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := newAuthApp(stubResolver{}, models.RoleTeacher)

	require.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "").StatusCode)
	require.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "Token abc").StatusCode)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}).SignedString([]byte("other"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "Bearer "+forged).StatusCode)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "Bearer "+noSubject).StatusCode)
}
