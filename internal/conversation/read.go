package conversation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

// MarkConversationRead marks every unread message the reader did not send.
// It returns the number of messages marked.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID, readerID int64) (n int64, err error) {
	ctx, span := startSpan(ctx, "conversation.MarkConversationRead", attribute.Int64("conversation_id", conversationID))
	defer func() { finishSpan(span, err) }()

	set, err := s.memberSet(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	n, err = s.messages.MarkConversationRead(ctx, conversationID, readerID, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	s.afterRead(ctx, conversationID, readerID, set, n)
	return n, nil
}

// MarkMessagesRead is MarkConversationRead limited to messageIDs. Ids from
// other conversations are ignored.
func (s *Service) MarkMessagesRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) (n int64, err error) {
	ctx, span := startSpan(ctx, "conversation.MarkMessagesRead",
		attribute.Int64("conversation_id", conversationID),
		attribute.Int("message_count", len(messageIDs)),
	)
	defer func() { finishSpan(span, err) }()

	if len(messageIDs) == 0 {
		return 0, fmt.Errorf("%w: message ids are required", ErrValidation)
	}
	set, err := s.memberSet(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	n, err = s.messages.MarkMessagesRead(ctx, conversationID, readerID, messageIDs, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	s.afterRead(ctx, conversationID, readerID, set, n)
	return n, nil
}

func (s *Service) afterRead(ctx context.Context, conversationID, readerID int64, set ParticipantSet, n int64) {
	s.cache.Invalidate(ctx, set.IDs(), &conversationID)
	if n == 0 {
		return
	}
	observability.AddMessagesRead(n)
	s.publish(ctx, models.ConversationEvent{
		Type:           models.EventMessagesRead,
		ConversationID: conversationID,
		ActorID:        readerID,
		ParticipantIDs: set.IDs(),
		Count:          n,
		OccurredAt:     s.timestamp(),
	})
}
