package models

import "time"

// Event types emitted after a committed write.
const (
	EventConversationCreated = "conversation.created"
	EventMessageSent         = "message.sent"
	EventMessageRecalled     = "message.recalled"
	EventMessagesRead        = "messages.read"
)

// ConversationEvent describes a committed write for downstream subscribers
// such as notification or audit adapters.
type ConversationEvent struct {
	Type           string      `json:"type"`
	ConversationID int64       `json:"conversation_id"`
	ActorID        int64       `json:"actor_id"`
	ParticipantIDs []int64     `json:"participant_ids,omitempty"`
	MessageID      int64       `json:"message_id,omitempty"`
	RecallScope    RecallScope `json:"recall_scope,omitempty"`
	Count          int64       `json:"count,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
