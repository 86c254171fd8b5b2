package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Domain event subjects, relative to the configured subject prefix.
const (
	EventExamSubmitted   = "exam.submitted"
	EventCourseCompleted = "course.completed"
)

// EventPublisher emits best-effort domain events for downstream consumers
// (notification fan-out, analytics). Publish failures must never fail the
// originating request.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

type natsEventPublisher struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

type eventEnvelope struct {
	Subject string      `json:"subject"`
	SentAt  time.Time   `json:"sent_at"`
	Payload interface{} `json:"payload"`
}

// NewNATSEventPublisher constructs a NATS-backed publisher. Subjects are
// published as "<prefix>.<subject>".
func NewNATSEventPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) EventPublisher {
	if prefix == "" {
		prefix = "univia"
	}

	return &natsEventPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "event_publisher").Logger(),
		now:    time.Now,
	}
}

func (p *natsEventPublisher) Publish(_ context.Context, subject string, payload interface{}) error {
	envelope := eventEnvelope{
		Subject: subject,
		SentAt:  p.now().UTC(),
		Payload: payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	full := p.prefix + "." + subject
	if err := p.conn.Publish(full, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", full).Msg("failed to publish event")
		return err
	}

	return nil
}
