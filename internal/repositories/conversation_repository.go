package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/db"
	"conversation-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrDuplicateParticipantSet is returned when a live conversation with the
	// same participant fingerprint already exists.
	ErrDuplicateParticipantSet = errors.New("conversation with this participant set already exists")
)

// NewConversation carries everything inserted by CreateConversation.
type NewConversation struct {
	Title          *string
	ParticipantKey string
	ParticipantIDs []int64
	SenderID       int64
	SeedBody       *string
	CreatedAt      time.Time
}

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindCandidates(ctx context.Context, userIDs []int64, size int, untitledOnly bool) ([]int64, error)
	ListParticipants(ctx context.Context, conversationIDs []int64) ([]models.Participant, error)
	CreateConversation(ctx context.Context, nc NewConversation) (models.Conversation, *models.Message, error)
	GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error)
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error)
	CountForUser(ctx context.Context, userID int64, search string) (int64, error)
	ListForUser(ctx context.Context, userID int64, search string, limit, offset int) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `c.id, c.title, c.participant_key, c.created_at, c.updated_at, c.deleted_at`

// FindCandidates returns live conversations that contain at least one of
// userIDs and have exactly size participants.
func (r *ConversationRepo) FindCandidates(ctx context.Context, userIDs []int64, size int, untitledOnly bool) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	titleFilter := ""
	if untitledOnly {
		titleFilter = "AND c.title IS NULL"
	}
	query, args, err := sqlx.In(`SELECT cp.conversation_id
        FROM conversation_participants cp
        JOIN conversations c ON c.id = cp.conversation_id
        WHERE c.deleted_at IS NULL `+titleFilter+`
        AND cp.conversation_id IN (SELECT conversation_id FROM conversation_participants WHERE user_id IN (?))
        GROUP BY cp.conversation_id
        HAVING COUNT(*) = ?
        ORDER BY cp.conversation_id ASC`, userIDs, size)
	if err != nil {
		return nil, err
	}
	var ids []int64
	err = r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...)
	return ids, err
}

// ListParticipants returns participant rows for the given conversations,
// ordered by conversation then user.
func (r *ConversationRepo) ListParticipants(ctx context.Context, conversationIDs []int64) ([]models.Participant, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT conversation_id, user_id, joined_at
        FROM conversation_participants
        WHERE conversation_id IN (?)
        ORDER BY conversation_id ASC, user_id ASC`, conversationIDs)
	if err != nil {
		return nil, err
	}
	var participants []models.Participant
	err = r.db.SelectContext(ctx, &participants, r.db.Rebind(query), args...)
	return participants, err
}

// CreateConversation inserts the conversation, its participants and the
// optional seed message atomically.
func (r *ConversationRepo) CreateConversation(ctx context.Context, nc NewConversation) (conv models.Conversation, seed *models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			if db.IsUniqueViolation(err) {
				err = ErrDuplicateParticipantSet
			}
		}
	}()

	key := nc.ParticipantKey
	conv = models.Conversation{
		Title:          nc.Title,
		ParticipantKey: &key,
		CreatedAt:      nc.CreatedAt,
		UpdatedAt:      nc.CreatedAt,
	}
	if err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO conversations (title, participant_key, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`),
		nc.Title, key, nc.CreatedAt, nc.CreatedAt).Scan(&conv.ID); err != nil {
		return models.Conversation{}, nil, err
	}

	for _, userID := range nc.ParticipantIDs {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO conversation_participants (conversation_id, user_id, joined_at) VALUES (?, ?, ?)`),
			conv.ID, userID, nc.CreatedAt); err != nil {
			return models.Conversation{}, nil, err
		}
	}

	if nc.SeedBody != nil {
		var msg models.Message
		msg, err = insertMessage(ctx, tx, conv.ID, nc.SenderID, *nc.SeedBody, nc.CreatedAt)
		if err != nil {
			return models.Conversation{}, nil, err
		}
		seed = &msg
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, nil, err
	}
	return conv, seed, nil
}

// GetConversation fetches a live conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, r.db.Rebind(`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = ? AND c.deleted_at IS NULL`), conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ParticipantIDs returns the sorted participant ids of a conversation.
func (r *ConversationRepo) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY user_id ASC`), conversationID)
	return ids, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?)`), conversationID, userID)
	return exists, err
}

// CountForUser counts the live conversations of a user matching search.
func (r *ConversationRepo) CountForUser(ctx context.Context, userID int64, search string) (int64, error) {
	filter, args := searchFilter(search)
	var total int64
	err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = ?
        WHERE c.deleted_at IS NULL`+filter), append([]any{userID}, args...)...)
	return total, err
}

// ListForUser returns one page of a user's live conversations, most recently
// updated first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, search string, limit, offset int) ([]models.Conversation, error) {
	filter, args := searchFilter(search)
	args = append([]any{userID}, args...)
	args = append(args, limit, offset)
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, r.db.Rebind(`SELECT `+conversationColumns+` FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = ?
        WHERE c.deleted_at IS NULL`+filter+`
        ORDER BY c.updated_at DESC, c.id DESC
        LIMIT ? OFFSET ?`), args...)
	return convs, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func searchFilter(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
	return ` AND LOWER(COALESCE(c.title, '')) LIKE ? ESCAPE '\'`, []any{pattern}
}
