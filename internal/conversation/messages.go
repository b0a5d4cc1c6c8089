package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

// SendMessage appends a message from a participant.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID int64, body string) (view models.MessageView, err error) {
	ctx, span := startSpan(ctx, "conversation.SendMessage", attribute.Int64("conversation_id", conversationID))
	defer func() { finishSpan(span, err) }()

	body = strings.TrimSpace(body)
	if body == "" {
		return models.MessageView{}, fmt.Errorf("%w: message body is required", ErrValidation)
	}
	set, err := s.memberSet(ctx, conversationID, senderID)
	if err != nil {
		return models.MessageView{}, err
	}

	msg, err := s.messages.AppendMessage(ctx, conversationID, senderID, body, s.timestamp())
	if err != nil {
		return models.MessageView{}, fmt.Errorf("append message: %w", err)
	}
	s.cache.Invalidate(ctx, set.IDs(), &conversationID)
	s.publish(ctx, models.ConversationEvent{
		Type:           models.EventMessageSent,
		ConversationID: conversationID,
		ActorID:        senderID,
		ParticipantIDs: set.IDs(),
		MessageID:      msg.ID,
		OccurredAt:     msg.CreatedAt,
	})

	return Project(msg), nil
}

// GetConversation returns a conversation and its roster to a participant.
func (s *Service) GetConversation(ctx context.Context, conversationID, viewerID int64) (detail models.ConversationDetail, err error) {
	ctx, span := startSpan(ctx, "conversation.Get", attribute.Int64("conversation_id", conversationID))
	defer func() { finishSpan(span, err) }()

	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return models.ConversationDetail{}, err
	}
	detail, err = s.cache.ConversationDetail(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.ConversationDetail{}, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
	}
	if err != nil {
		return models.ConversationDetail{}, fmt.Errorf("load conversation: %w", err)
	}
	return detail, nil
}

// ListMessages returns one page of the conversation as the viewer sees it.
func (s *Service) ListMessages(ctx context.Context, conversationID, viewerID int64, page, limit int) (msgs models.MessagePage, err error) {
	ctx, span := startSpan(ctx, "conversation.ListMessages", attribute.Int64("conversation_id", conversationID))
	defer func() { finishSpan(span, err) }()

	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return models.MessagePage{}, err
	}
	msgs, err = s.cache.MessagePage(ctx, conversationID, viewerID, page, limit)
	if err != nil {
		return models.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// ListConversations returns one page of the user's conversations.
func (s *Service) ListConversations(ctx context.Context, userID int64, params ListParams) (page models.ConversationPage, err error) {
	ctx, span := startSpan(ctx, "conversation.List", attribute.Int64("user_id", userID))
	defer func() { finishSpan(span, err) }()

	if userID <= 0 {
		return models.ConversationPage{}, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}
	page, err = s.cache.ListConversations(ctx, userID, params)
	if err != nil {
		return models.ConversationPage{}, fmt.Errorf("list conversations: %w", err)
	}
	return page, nil
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not a participant of conversation %d", ErrForbidden, userID, conversationID)
	}
	return nil
}
