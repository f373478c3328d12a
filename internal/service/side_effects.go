package service

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// Domain event types.
const (
	EventFeedbackSubmitted = "feedback.submitted"
	EventFeedbackPushed    = "feedback.pushed"
	EventTaskAssigned      = "task.assigned"
	EventTaskChanged       = "task.changed"
	EventStudentFlagged    = "student.flagged"
	EventStudentUpdated    = "student.updated"
	EventOpsTaskOpened     = "ops_task.opened"
)

// EventPublisher sends domain events after a commit.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, actorID uint, payload map[string]interface{}) error
}

// effects runs post-commit work. None of it can fail the request.
type effects struct {
	activity ActivityRecorder
	events   EventPublisher
	logger   zerolog.Logger
}

func (e effects) record(ctx context.Context, actor Actor, role, action, entityType string, entityID *uint, metadata map[string]interface{}) {
	if e.activity == nil {
		return
	}
	if actor.System {
		role = "system"
	}
	if _, err := e.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
	}); err != nil {
		e.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

func (e effects) publish(ctx context.Context, actor Actor, eventType string, payload map[string]interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, eventType, actor.ID, payload); err != nil {
		e.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips markup and returns plain text as typed. Escaping happens on output.
func cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

func uintPtr(value uint) *uint {
	return &value
}
