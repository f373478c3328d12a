package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/internal/utils"
)

// ActorKey is the fiber local holding the resolved service.Actor.
const ActorKey = "actor"

// ActorResolver loads the current role set of a user.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id uint) (service.Actor, error)
}

// ResolveActor loads the authenticated user's roles from storage on every
// request so role changes apply without reissuing tokens.
func ResolveActor(resolver ActorResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(UserIDKey).(uint)
		if !ok || userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		actor, err := resolver.ResolveActor(c.UserContext(), userID)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrNotFound):
			return utils.SendError(c, fiber.StatusUnauthorized, "unknown user")
		case errors.Is(err, service.ErrPermission), service.IsValidation(err):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		default:
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve user")
		}

		c.Locals(ActorKey, actor)
		return c.Next()
	}
}

// ActorFromContext returns the actor stored by ResolveActor.
func ActorFromContext(c *fiber.Ctx) (service.Actor, bool) {
	actor, ok := c.Locals(ActorKey).(service.Actor)
	return actor, ok
}

// RequireRole ensures that the resolved actor holds one of the allowed roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !actor.HasAny(roles...) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
