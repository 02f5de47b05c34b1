// Package events publishes domain events to a message broker. When no
// broker is configured, events are written to the log instead.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Publisher delivers an event of the given type. Payloads are encoded as
// JSON.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
	Close() error
}

// LogPublisher writes each event as a structured log line. It is used when
// AMQP_URL is empty.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.logger.Info().
		Str("event_type", eventType).
		RawJSON("payload", body).
		Time("published_at", time.Now().UTC()).
		Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
