package models

import "time"

// Conversation is a thread shared by its participants. A nil Title with
// exactly two participants makes it a direct conversation.
type Conversation struct {
	ID             int64      `db:"id" json:"id"`
	Title          *string    `db:"title" json:"title,omitempty"`
	ParticipantKey *string    `db:"participant_key" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// IsDirect reports whether the conversation classifies as direct for the
// given participant count.
func (c Conversation) IsDirect(participantCount int) bool {
	return participantCount == 2 && c.Title == nil
}

// Participant links a user to a conversation.
type Participant struct {
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}

// ConversationDetail is a conversation with its roster.
type ConversationDetail struct {
	Conversation
	ParticipantIDs []int64 `json:"participant_ids"`
	IsDirect       bool    `json:"is_direct"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ID             int64        `json:"id"`
	Title          *string      `json:"title,omitempty"`
	IsDirect       bool         `json:"is_direct"`
	ParticipantIDs []int64      `json:"participant_ids"`
	UnreadCount    int64        `json:"unread_count"`
	LastMessage    *MessageView `json:"last_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ConversationPage is a paginated, search-filtered list of summaries.
type ConversationPage struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int64                 `json:"total"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
}

// UnreadCount is the per-conversation unread aggregate for a reader.
type UnreadCount struct {
	ConversationID int64 `db:"conversation_id"`
	Count          int64 `db:"unread"`
}
