package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrAlreadyRecalled is returned when a recall-for-all update finds the
	// message already in the terminal recall state.
	ErrAlreadyRecalled = errors.New("message already recalled for all")
)

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	AppendMessage(ctx context.Context, conversationID int64, senderID int64, body string, at time.Time) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListForViewer(ctx context.Context, conversationID int64, viewerID int64, limit, offset int) ([]models.Message, error)
	LastVisible(ctx context.Context, viewerID int64, conversationIDs []int64) ([]models.Message, error)
	UnreadCounts(ctx context.Context, readerID int64, conversationIDs []int64) ([]models.UnreadCount, error)
	RecallForAll(ctx context.Context, messageID int64, senderID int64, placeholder string, at time.Time) error
	HideForUser(ctx context.Context, tombstone models.DeletedMessage) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID int64, readerID int64, at time.Time) (int64, error)
	MarkMessagesRead(ctx context.Context, conversationID int64, readerID int64, messageIDs []int64, at time.Time) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.body, m.created_at, m.read_at, m.is_recalled, m.recall_scope, m.recalled_at`

const notHiddenFor = `NOT EXISTS (SELECT 1 FROM deleted_messages dm WHERE dm.message_id = m.id AND dm.user_id = ?)`

type rebindQueryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func insertMessage(ctx context.Context, q rebindQueryer, conversationID int64, senderID int64, body string, at time.Time) (models.Message, error) {
	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      at,
	}
	err := q.QueryRowxContext(ctx, q.Rebind(`INSERT INTO messages (conversation_id, sender_id, body, created_at, is_recalled) VALUES (?, ?, ?, ?, FALSE) RETURNING id`),
		conversationID, senderID, body, at).Scan(&msg.ID)
	return msg, err
}

// AppendMessage stores a message and bumps the conversation's updated_at in
// one transaction.
func (r *MessageRepo) AppendMessage(ctx context.Context, conversationID int64, senderID int64, body string, at time.Time) (msg models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if msg, err = insertMessage(ctx, tx, conversationID, senderID, body, at); err != nil {
		return models.Message{}, err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE conversations SET updated_at = ? WHERE id = ?`), at, conversationID); err != nil {
		return models.Message{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM messages m WHERE m.id = ?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForViewer returns a page of messages not hidden from the viewer,
// newest first.
func (r *MessageRepo) ListForViewer(ctx context.Context, conversationID int64, viewerID int64, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(`SELECT `+messageColumns+` FROM messages m
        WHERE m.conversation_id = ? AND `+notHiddenFor+`
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT ? OFFSET ?`), conversationID, viewerID, limit, offset)
	return msgs, err
}

// LastVisible returns, for each conversation, the newest message not hidden
// from the viewer. Conversations without such a message are absent.
func (r *MessageRepo) LastVisible(ctx context.Context, viewerID int64, conversationIDs []int64) ([]models.Message, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+messageColumns+` FROM messages m
        WHERE m.conversation_id IN (?) AND `+notHiddenFor+`
        AND m.created_at = (
            SELECT MAX(m2.created_at) FROM messages m2
            WHERE m2.conversation_id = m.conversation_id
            AND NOT EXISTS (SELECT 1 FROM deleted_messages dm2 WHERE dm2.message_id = m2.id AND dm2.user_id = ?)
        )
        ORDER BY m.conversation_id ASC, m.id DESC`, conversationIDs, viewerID, viewerID)
	if err != nil {
		return nil, err
	}
	var rows []models.Message
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	// several messages may share the newest timestamp; keep the highest id
	latest := make([]models.Message, 0, len(rows))
	for _, m := range rows {
		if n := len(latest); n > 0 && latest[n-1].ConversationID == m.ConversationID {
			continue
		}
		latest = append(latest, m)
	}
	return latest, nil
}

// UnreadCounts counts inbound unread messages per conversation that are not
// hidden from the reader.
func (r *MessageRepo) UnreadCounts(ctx context.Context, readerID int64, conversationIDs []int64) ([]models.UnreadCount, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT m.conversation_id, COUNT(*) AS unread FROM messages m
        WHERE m.conversation_id IN (?) AND m.sender_id <> ? AND m.read_at IS NULL AND `+notHiddenFor+`
        GROUP BY m.conversation_id`, conversationIDs, readerID, readerID)
	if err != nil {
		return nil, err
	}
	var counts []models.UnreadCount
	err = r.db.SelectContext(ctx, &counts, r.db.Rebind(query), args...)
	return counts, err
}

// RecallForAll replaces the body with placeholder and moves the message to
// the terminal recall state. Only the sender's messages are affected.
func (r *MessageRepo) RecallForAll(ctx context.Context, messageID int64, senderID int64, placeholder string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE messages
        SET is_recalled = TRUE, recall_scope = 'all', recalled_at = ?, body = ?
        WHERE id = ? AND sender_id = ? AND (recall_scope IS NULL OR recall_scope <> 'all')`),
		at, placeholder, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAlreadyRecalled
	}
	return nil
}

// HideForUser records a per-user tombstone. It reports whether a new row
// was written; an existing tombstone is not an error.
func (r *MessageRepo) HideForUser(ctx context.Context, tombstone models.DeletedMessage) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO deleted_messages (message_id, user_id, deleted_at) VALUES (?, ?, ?)
        ON CONFLICT (message_id, user_id) DO NOTHING`), tombstone.MessageID, tombstone.UserID, tombstone.DeletedAt)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkConversationRead sets read_at on every unread inbound message of the
// conversation.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID int64, readerID int64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE messages SET read_at = ?
        WHERE conversation_id = ? AND sender_id <> ? AND read_at IS NULL`), at, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkMessagesRead is MarkConversationRead restricted to messageIDs. Ids
// outside the conversation are ignored by the predicate.
func (r *MessageRepo) MarkMessagesRead(ctx context.Context, conversationID int64, readerID int64, messageIDs []int64, at time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE messages SET read_at = ?
        WHERE conversation_id = ? AND sender_id <> ? AND read_at IS NULL AND id IN (?)`, at, conversationID, readerID, messageIDs)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
