package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/noah-isme/tutordesk-api/internal/observability"
)

// CorrelationHeader carries the request correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationLength = 64

// CorrelationID makes sure every request carries a correlation id. The id is
// stored in fiber locals and in the user context so services can stamp it on
// audit entries and published events.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := acceptCorrelation(c.Get(CorrelationHeader))
		if incoming == "" {
			incoming = acceptCorrelation(c.Get(fiber.HeaderXRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals("correlation_id", incoming)
		c.Set(CorrelationHeader, incoming)
		c.SetUserContext(observability.ContextWithCorrelation(c.UserContext(), incoming))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return observability.CorrelationIDFromContext(c.UserContext())
}

// acceptCorrelation drops client ids that are too long or carry anything
// outside [A-Za-z0-9._-].
func acceptCorrelation(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxCorrelationLength {
		return ""
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return value
}
