package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

// CreateConversationInput is a create-or-get request. The requester is
// always a member of the resulting conversation.
type CreateConversationInput struct {
	RequesterID    int64
	ParticipantIDs []int64
	Title          *string
	SeedMessage    *string
}

// CreateResult reports the conversation and whether this call created it.
type CreateResult struct {
	Conversation models.ConversationDetail
	Created      bool
	SeedMessage  *models.MessageView
}

// CreateOrGetConversation returns the live conversation whose participant
// set equals the requested one, creating it when none exists. A seed message
// is appended in both cases.
func (s *Service) CreateOrGetConversation(ctx context.Context, in CreateConversationInput) (res CreateResult, err error) {
	ctx, span := startSpan(ctx, "conversation.CreateOrGet", attribute.Int64("requester_id", in.RequesterID))
	defer func() { finishSpan(span, err) }()

	if in.RequesterID <= 0 {
		return CreateResult{}, fmt.Errorf("%w: requester id must be positive", ErrValidation)
	}
	members := make([]int64, 0, len(in.ParticipantIDs)+1)
	for _, id := range in.ParticipantIDs {
		if id <= 0 {
			return CreateResult{}, fmt.Errorf("%w: participant id %d must be positive", ErrValidation, id)
		}
		if id != in.RequesterID {
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return CreateResult{}, fmt.Errorf("%w: at least one participant besides the requester is required", ErrValidation)
	}
	set := NewParticipantSet(append(members, in.RequesterID)...)
	title := trimmedOrNil(in.Title)
	seed := trimmedOrNil(in.SeedMessage)
	direct := set.Len() == 2 && title == nil
	span.SetAttributes(attribute.Int("participants", set.Len()), attribute.Bool("direct", direct))

	id, found, err := s.matcher.FindExisting(ctx, set, title != nil)
	if err != nil {
		return CreateResult{}, fmt.Errorf("match participants: %w", err)
	}
	if found {
		observability.IncParticipantMatch("hit")
		return s.reuseConversation(ctx, id, set, in.RequesterID, seed)
	}
	observability.IncParticipantMatch("miss")

	now := s.timestamp()
	conv, seedMsg, err := s.conversations.CreateConversation(ctx, repositories.NewConversation{
		Title:          title,
		ParticipantKey: set.Fingerprint(direct),
		ParticipantIDs: set.IDs(),
		SenderID:       in.RequesterID,
		SeedBody:       seed,
		CreatedAt:      now,
	})
	if errors.Is(err, repositories.ErrDuplicateParticipantSet) {
		// a concurrent request committed the same set first
		observability.IncParticipantMatch("race")
		id, found, err = s.matcher.FindExisting(ctx, set, title != nil)
		if err != nil {
			return CreateResult{}, fmt.Errorf("match participants after conflict: %w", err)
		}
		if !found {
			return CreateResult{}, fmt.Errorf("%w: participant set is being created concurrently", ErrConflict)
		}
		return s.reuseConversation(ctx, id, set, in.RequesterID, seed)
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("create conversation: %w", err)
	}

	s.cache.Invalidate(ctx, set.IDs(), &conv.ID)

	kind := "group"
	if direct {
		kind = "direct"
	}
	observability.IncConversationCreated(kind)
	s.logger.Info().Int64("conversation_id", conv.ID).Str("kind", kind).Int("participants", set.Len()).Msg("conversation created")

	res = CreateResult{
		Conversation: models.ConversationDetail{
			Conversation:   conv,
			ParticipantIDs: set.IDs(),
			IsDirect:       direct,
		},
		Created: true,
	}
	event := models.ConversationEvent{
		Type:           models.EventConversationCreated,
		ConversationID: conv.ID,
		ActorID:        in.RequesterID,
		ParticipantIDs: set.IDs(),
		OccurredAt:     now,
	}
	if seedMsg != nil {
		view := Project(*seedMsg)
		res.SeedMessage = &view
		event.MessageID = seedMsg.ID
	}
	s.publish(ctx, event)
	return res, nil
}

// reuseConversation returns an existing conversation, appending seed when
// given. Without a seed nothing is written.
func (s *Service) reuseConversation(ctx context.Context, conversationID int64, set ParticipantSet, requesterID int64, seed *string) (CreateResult, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("load conversation %d: %w", conversationID, err)
	}
	res := CreateResult{
		Conversation: models.ConversationDetail{
			Conversation:   conv,
			ParticipantIDs: set.IDs(),
			IsDirect:       conv.IsDirect(set.Len()),
		},
	}
	if seed == nil {
		return res, nil
	}

	msg, err := s.messages.AppendMessage(ctx, conversationID, requesterID, *seed, s.timestamp())
	if err != nil {
		return CreateResult{}, fmt.Errorf("append seed message: %w", err)
	}
	res.Conversation.UpdatedAt = msg.CreatedAt
	view := Project(msg)
	res.SeedMessage = &view

	s.cache.Invalidate(ctx, set.IDs(), &conversationID)
	s.publish(ctx, models.ConversationEvent{
		Type:           models.EventMessageSent,
		ConversationID: conversationID,
		ActorID:        requesterID,
		ParticipantIDs: set.IDs(),
		MessageID:      msg.ID,
		OccurredAt:     msg.CreatedAt,
	})
	return res, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
