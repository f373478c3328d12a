package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutordesk-api/internal/observability"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestPublishPrefixesSubject(t *testing.T) {
	conn := &recordingConn{}
	bus := New(conn, "tutordesk.", zerolog.Nop())

	ctx := observability.ContextWithCorrelation(context.Background(), "req-42")
	err := bus.Publish(ctx, "feedback.submitted", 7, map[string]interface{}{"count": 2})
	require.NoError(t, err)
	require.Equal(t, []string{"tutordesk.feedback.submitted"}, conn.subjects)

	var event Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &event))
	require.Equal(t, "feedback.submitted", event.Type)
	require.Equal(t, uint(7), event.ActorID)
	require.NotEmpty(t, event.ID)
	require.Equal(t, "req-42", event.CorrelationID)
	require.EqualValues(t, 2, event.Payload["count"])
}

func TestPublishWithoutConnectionIsNoop(t *testing.T) {
	var nilBus *Bus
	require.NoError(t, nilBus.Publish(context.Background(), "x", 1, nil))

	bus := NewFromNATS(nil, "tutordesk", zerolog.Nop())
	require.NoError(t, bus.Publish(context.Background(), "x", 1, nil))
}

func TestPublishWrapsBrokerErrors(t *testing.T) {
	bus := New(&recordingConn{err: errors.New("down")}, "", zerolog.Nop())

	err := bus.Publish(context.Background(), "task.assigned", 1, nil)
	require.ErrorContains(t, err, "task.assigned")
}
