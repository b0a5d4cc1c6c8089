package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

// RecallMessage applies the recall transition selected by scope.
func (s *Service) RecallMessage(ctx context.Context, messageID, requesterID int64, scope models.RecallScope) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: unknown recall scope %q", ErrValidation, scope)
	}
	if scope == models.RecallScopeSelf {
		return s.RecallForSelf(ctx, messageID, requesterID)
	}
	return s.RecallForAll(ctx, messageID, requesterID)
}

// RecallForAll replaces the message body with RecalledPlaceholder for every
// viewer. The transition is terminal; repeating it is a conflict.
func (s *Service) RecallForAll(ctx context.Context, messageID, requesterID int64) (err error) {
	ctx, span := startSpan(ctx, "conversation.RecallForAll", attribute.Int64("message_id", messageID))
	defer func() { finishSpan(span, err) }()

	msg, err := s.senderOwnedMessage(ctx, messageID, requesterID)
	if err != nil {
		return err
	}
	if msg.RecalledForAll() {
		return fmt.Errorf("%w: message %d already recalled", ErrConflict, messageID)
	}

	now := s.timestamp()
	err = s.messages.RecallForAll(ctx, messageID, requesterID, RecalledPlaceholder, now)
	if errors.Is(err, repositories.ErrAlreadyRecalled) {
		return fmt.Errorf("%w: message %d already recalled", ErrConflict, messageID)
	}
	if err != nil {
		return fmt.Errorf("recall message: %w", err)
	}

	s.afterRecall(ctx, msg, requesterID, models.RecallScopeAll)
	return nil
}

// RecallForSelf hides the message from the requester only. Repeating it is a
// no-op.
func (s *Service) RecallForSelf(ctx context.Context, messageID, requesterID int64) (err error) {
	ctx, span := startSpan(ctx, "conversation.RecallForSelf", attribute.Int64("message_id", messageID))
	defer func() { finishSpan(span, err) }()

	msg, err := s.senderOwnedMessage(ctx, messageID, requesterID)
	if err != nil {
		return err
	}

	inserted, err := s.messages.HideForUser(ctx, models.DeletedMessage{
		MessageID: messageID,
		UserID:    requesterID,
		DeletedAt: s.timestamp(),
	})
	if err != nil {
		return fmt.Errorf("hide message: %w", err)
	}
	if !inserted {
		return nil
	}

	s.afterRecall(ctx, msg, requesterID, models.RecallScopeSelf)
	return nil
}

func (s *Service) senderOwnedMessage(ctx context.Context, messageID, requesterID int64) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.Message{}, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("load message: %w", err)
	}
	if msg.SenderID != requesterID {
		return models.Message{}, fmt.Errorf("%w: only the sender may recall message %d", ErrForbidden, messageID)
	}
	return msg, nil
}

func (s *Service) afterRecall(ctx context.Context, msg models.Message, requesterID int64, scope models.RecallScope) {
	observability.IncMessageRecalled(string(scope))

	members, err := s.conversations.ParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("conversation_id", msg.ConversationID).Msg("load participants for invalidation failed")
		members = []int64{requesterID}
	}
	s.cache.Invalidate(ctx, members, &msg.ConversationID)

	s.publish(ctx, models.ConversationEvent{
		Type:           models.EventMessageRecalled,
		ConversationID: msg.ConversationID,
		ActorID:        requesterID,
		ParticipantIDs: members,
		MessageID:      msg.ID,
		RecallScope:    scope,
		OccurredAt:     s.timestamp(),
	})
}
