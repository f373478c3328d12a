// Package eventbus publishes domain events to NATS subjects.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/observability"
)

// Event is the envelope written to the broker.
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	ActorID       uint                   `json:"actor_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Payload       map[string]interface{} `json:"payload"`
}

// Conn is the subset of *nats.Conn used by the bus.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Bus publishes events under a common subject prefix. A nil *Bus or one without a
// connection drops events silently.
type Bus struct {
	conn   Conn
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a bus. conn may be nil when no broker is configured.
func New(conn Conn, prefix string, logger zerolog.Logger) *Bus {
	return &Bus{
		conn:   conn,
		prefix: strings.Trim(prefix, "."),
		logger: logger.With().Str("component", "eventbus").Logger(),
		now:    time.Now,
	}
}

// NewFromNATS wraps a live NATS connection.
func NewFromNATS(conn *nats.Conn, prefix string, logger zerolog.Logger) *Bus {
	if conn == nil {
		return New(nil, prefix, logger)
	}
	return New(conn, prefix, logger)
}

// Subject returns the fully qualified subject for an event type.
func (b *Bus) Subject(eventType string) string {
	if b.prefix == "" {
		return eventType
	}
	return b.prefix + "." + eventType
}

// Publish serialises and sends one event. Errors are returned so callers can log them;
// they never affect committed state.
func (b *Bus) Publish(ctx context.Context, eventType string, actorID uint, payload map[string]interface{}) error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	event := Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ActorID:       actorID,
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		OccurredAt:    b.now().UTC(),
		Payload:       payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	subject := b.Subject(eventType)
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	b.logger.Debug().Str("subject", subject).Str("event_id", event.ID).Msg("event published")
	return nil
}
