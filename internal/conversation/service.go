package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

var tracer = otel.Tracer("conversation-service/internal/conversation")

// EventPublisher receives an event after each committed write.
type EventPublisher interface {
	Publish(ctx context.Context, event models.ConversationEvent) error
}

// Service is the conversation core: creation with participant-set dedup,
// message recall, read tracking and cached listings.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	matcher       *Matcher
	cache         *Coordinator
	events        EventPublisher
	logger        zerolog.Logger
	now           func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEventPublisher sets the publisher notified after committed writes.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// NewService wires the core. A nil coordinator serves every read uncached.
func NewService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, coordinator *Coordinator, logger zerolog.Logger, opts ...Option) *Service {
	if coordinator == nil {
		coordinator = NewCoordinator(nil, conversations, messages, 0, logger)
	}
	s := &Service{
		conversations: conversations,
		messages:      messages,
		matcher:       NewMatcher(conversations),
		cache:         coordinator,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) publish(ctx context.Context, event models.ConversationEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Int64("conversation_id", event.ConversationID).Msg("event publish failed")
	}
}

// memberSet loads the roster of conversationID and requires userID in it.
func (s *Service) memberSet(ctx context.Context, conversationID, userID int64) (ParticipantSet, error) {
	ids, err := s.conversations.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return ParticipantSet{}, fmt.Errorf("load participants: %w", err)
	}
	set := NewParticipantSet(ids...)
	if !set.Contains(userID) {
		return ParticipantSet{}, fmt.Errorf("%w: user %d is not a participant of conversation %d", ErrForbidden, userID, conversationID)
	}
	return set, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil && !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound)
}
