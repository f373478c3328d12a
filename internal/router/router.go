package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/tutordesk-api/internal/config"
	"github.com/noah-isme/tutordesk-api/internal/handler"
	"github.com/noah-isme/tutordesk-api/internal/middleware"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TeachingHandler      *handler.TeachingHandler
	ResearchHandler      *handler.ResearchHandler
	StudentHandler       *handler.StudentHandler
	OperationsHandler    *handler.OperationsHandler
	AdminUserHandler     *handler.AdminUserHandler
	AdminActivityHandler *handler.AdminActivityHandler
	ActorResolver        middleware.ActorResolver
	HealthProbes         map[string]handler.Pinger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	authenticated := []fiber.Handler{
		middleware.JWTProtected(cfg.JWTSecret),
		middleware.ResolveActor(deps.ActorResolver),
		middleware.RateLimit("api", cfg.RateLimitMax, cfg.RateLimitWindow),
	}
	guarded := func(roles ...models.Role) []fiber.Handler {
		return append(append([]fiber.Handler{}, authenticated...), middleware.RequireRole(roles...))
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.RegisterDirectory(api.Group("/students", authenticated...))
	}

	if deps.TeachingHandler != nil {
		deps.TeachingHandler.Register(api.Group("/teaching", guarded(models.RoleTeacher)...))
	}

	if deps.ResearchHandler != nil {
		deps.ResearchHandler.Register(api.Group("/research", guarded(models.RoleResearcher, models.RoleAdmin)...))
	}

	operations := api.Group("/operations", guarded(models.RoleOperator)...)
	if deps.StudentHandler != nil {
		deps.StudentHandler.RegisterOperations(operations.Group("/students"))
	}
	if deps.OperationsHandler != nil {
		deps.OperationsHandler.Register(operations)
	}

	admin := api.Group("/admin", guarded(models.RoleAdmin)...)
	if deps.AdminUserHandler != nil {
		deps.AdminUserHandler.Register(admin.Group("/users"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activity"))
	}
}
