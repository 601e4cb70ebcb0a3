package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher delivers outbox events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// JetStreamPublisher publishes events to a NATS JetStream stream. Subjects
// follow "<prefix>.<session_id>.<event_type>" so consumers can filter by
// session or event type.
type JetStreamPublisher struct {
	js            jetstream.JetStream
	subjectPrefix string
}

// NewJetStreamPublisher creates a publisher and ensures the stream exists.
func NewJetStreamPublisher(ctx context.Context, nc *nats.Conn, streamName, subjectPrefix string) (*JetStreamPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	log.Info().
		Str("stream", streamName).
		Str("subject_prefix", subjectPrefix).
		Msg("JetStream publisher ready")

	return &JetStreamPublisher{js: js, subjectPrefix: subjectPrefix}, nil
}

// envelope is the wire format shared with the gateway's event consumer.
type envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, event.SessionID, event.EventType)

	body, err := json.Marshal(envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		SessionID: event.SessionID.String(),
		Timestamp: event.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Payload:   event.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	// MsgId dedupes redeliveries from the listener and the fallback poll.
	_, err = p.js.Publish(ctx, subject, body, jetstream.WithMsgID(event.ID.String()))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("subject", subject).
		Msg("published outbox event")
	return nil
}
