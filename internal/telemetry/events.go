package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// EventEmitter wraps committed-write events in a versioned envelope and
// hands them to a Publisher, routed by event type.
type EventEmitter struct {
	publisher   Publisher
	service     string
	environment string
	logger      zerolog.Logger
}

type EventEnvelope struct {
	SchemaVersion int                      `json:"schema_version"`
	EventType     string                   `json:"event_type"`
	OccurredAt    string                   `json:"occurred_at"`
	Service       string                   `json:"service"`
	Environment   string                   `json:"environment"`
	RequestID     string                   `json:"request_id,omitempty"`
	TraceID       string                   `json:"trace_id,omitempty"`
	Payload       models.ConversationEvent `json:"payload"`
}

func NewEventEmitter(publisher Publisher, service, environment string, logger zerolog.Logger) *EventEmitter {
	return &EventEmitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		logger:      logger.With().Str("component", "event_emitter").Logger(),
	}
}

// Publish implements conversation.EventPublisher.
func (e *EventEmitter) Publish(ctx context.Context, event models.ConversationEvent) error {
	if e == nil || e.publisher == nil {
		return nil
	}

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	envelope := EventEnvelope{
		SchemaVersion: 1,
		EventType:     event.Type,
		OccurredAt:    occurred.UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     observability.RequestIDFromContext(ctx),
		TraceID:       observability.TraceIDFromContext(ctx),
		Payload:       event,
	}

	e.logger.Debug().
		Str("event_type", event.Type).
		Int64("conversation_id", event.ConversationID).
		Str("request_id", envelope.RequestID).
		Msg("event emit")
	return e.publisher.Publish(ctx, event.Type, envelope)
}
