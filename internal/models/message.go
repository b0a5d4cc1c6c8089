package models

import "time"

// RecallScope selects how a message is recalled.
type RecallScope string

const (
	RecallScopeAll  RecallScope = "all"
	RecallScopeSelf RecallScope = "self"
)

// Valid reports whether s is a known scope.
func (s RecallScope) Valid() bool {
	return s == RecallScopeAll || s == RecallScopeSelf
}

// Message is a stored conversation message.
type Message struct {
	ID             int64        `db:"id" json:"id"`
	ConversationID int64        `db:"conversation_id" json:"conversation_id"`
	SenderID       int64        `db:"sender_id" json:"sender_id"`
	Body           string       `db:"body" json:"body"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	ReadAt         *time.Time   `db:"read_at" json:"read_at,omitempty"`
	IsRecalled     bool         `db:"is_recalled" json:"is_recalled"`
	RecallScope    *RecallScope `db:"recall_scope" json:"recall_scope,omitempty"`
	RecalledAt     *time.Time   `db:"recalled_at" json:"recalled_at,omitempty"`
}

// RecalledForAll reports whether the message reached the terminal recall state.
func (m Message) RecalledForAll() bool {
	return m.RecallScope != nil && *m.RecallScope == RecallScopeAll
}

// DeletedMessage hides one message from one user.
type DeletedMessage struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	DeletedAt time.Time `db:"deleted_at" json:"deleted_at"`
}

// Visibility is the outcome of projecting a message for a viewer.
type Visibility string

const (
	VisibilityVisible  Visibility = "visible"
	VisibilityRecalled Visibility = "recalled"
)

// MessageView is a message as a particular viewer may see it.
type MessageView struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	Visibility     Visibility `json:"visibility"`
}

// MessagePage is one page of messages for a viewer, newest first.
type MessagePage struct {
	Messages []MessageView `json:"messages"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}
