package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"conversation-service/internal/cache"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultPage     = 1
	DefaultLimit    = 20
	MaxLimit        = 100

	invalidateTimeout = 3 * time.Second
)

// ListParams selects one page of a user's conversation list.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

func (p ListParams) normalized() ListParams {
	p.Page, p.Limit = normalizePage(p.Page, p.Limit)
	p.Search = strings.ToLower(strings.TrimSpace(p.Search))
	return p
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func userListPrefix(userID int64) string {
	return fmt.Sprintf("conversations:user:%d:", userID)
}

func conversationPrefix(conversationID int64) string {
	return fmt.Sprintf("conversation:%d:", conversationID)
}

// ListKey is the cache key of one conversation-list page.
func ListKey(userID int64, p ListParams) string {
	p = p.normalized()
	return fmt.Sprintf("%spage:%d:limit:%d:search:%s", userListPrefix(userID), p.Page, p.Limit, url.QueryEscape(p.Search))
}

// DetailKey is the cache key of a conversation with its roster.
func DetailKey(conversationID int64) string {
	return conversationPrefix(conversationID) + "detail"
}

// MessagesKey is the cache key of one message page as seen by viewerID.
func MessagesKey(conversationID, viewerID int64, page, limit int) string {
	page, limit = normalizePage(page, limit)
	return fmt.Sprintf("%smessages:user:%d:page:%d:limit:%d", conversationPrefix(conversationID), viewerID, page, limit)
}

// Coordinator owns the derived cache of list pages, conversation details and
// message pages. It is the only component that populates those keys; any
// write path may invalidate them. A nil cache disables caching.
type Coordinator struct {
	cache         cache.Cache
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	ttl           time.Duration
	logger        zerolog.Logger
}

// NewCoordinator constructs a Coordinator. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewCoordinator(c cache.Cache, conversations repositories.ConversationRepository, messages repositories.MessageRepository, ttl time.Duration, logger zerolog.Logger) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Coordinator{
		cache:         c,
		conversations: conversations,
		messages:      messages,
		ttl:           ttl,
		logger:        logger.With().Str("component", "list_cache").Logger(),
	}
}

// Invalidate drops every list page of userIDs and, when conversationID is
// set, every key of that conversation. Failures are logged and counted but
// never returned: the triggering write has already committed.
func (c *Coordinator) Invalidate(ctx context.Context, userIDs []int64, conversationID *int64) {
	if c == nil || c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	prefixes := make([]string, 0, len(userIDs)+1)
	for _, id := range userIDs {
		prefixes = append(prefixes, userListPrefix(id))
	}
	if conversationID != nil {
		prefixes = append(prefixes, conversationPrefix(*conversationID))
	}

	for _, prefix := range prefixes {
		removed, err := c.cache.DeleteByPrefix(ctx, prefix)
		if err != nil {
			observability.IncCacheInvalidationError()
			c.logger.Warn().Err(err).Str("prefix", prefix).Msg("cache invalidation failed")
			continue
		}
		c.logger.Debug().Str("prefix", prefix).Int64("removed", removed).Msg("cache invalidated")
	}
}

// ListConversations returns one page of userID's conversations, from cache
// when possible.
func (c *Coordinator) ListConversations(ctx context.Context, userID int64, params ListParams) (models.ConversationPage, error) {
	params = params.normalized()
	return loadCached(ctx, c, "conversation_list", ListKey(userID, params), func(ctx context.Context) (models.ConversationPage, error) {
		return c.loadConversationPage(ctx, userID, params)
	})
}

// ConversationDetail returns a conversation with its sorted participant ids.
func (c *Coordinator) ConversationDetail(ctx context.Context, conversationID int64) (models.ConversationDetail, error) {
	return loadCached(ctx, c, "conversation_detail", DetailKey(conversationID), func(ctx context.Context) (models.ConversationDetail, error) {
		conv, err := c.conversations.GetConversation(ctx, conversationID)
		if err != nil {
			return models.ConversationDetail{}, err
		}
		ids, err := c.conversations.ParticipantIDs(ctx, conversationID)
		if err != nil {
			return models.ConversationDetail{}, err
		}
		return models.ConversationDetail{
			Conversation:   conv,
			ParticipantIDs: ids,
			IsDirect:       conv.IsDirect(len(ids)),
		}, nil
	})
}

// MessagePage returns one page of messages as viewerID sees them, newest
// first.
func (c *Coordinator) MessagePage(ctx context.Context, conversationID, viewerID int64, page, limit int) (models.MessagePage, error) {
	page, limit = normalizePage(page, limit)
	return loadCached(ctx, c, "messages", MessagesKey(conversationID, viewerID, page, limit), func(ctx context.Context) (models.MessagePage, error) {
		msgs, err := c.messages.ListForViewer(ctx, conversationID, viewerID, limit, (page-1)*limit)
		if err != nil {
			return models.MessagePage{}, err
		}
		return models.MessagePage{
			Messages: projectAll(msgs),
			Page:     page,
			Limit:    limit,
		}, nil
	})
}

func (c *Coordinator) loadConversationPage(ctx context.Context, userID int64, params ListParams) (models.ConversationPage, error) {
	page := models.ConversationPage{
		Conversations: []models.ConversationSummary{},
		Page:          params.Page,
		Limit:         params.Limit,
	}

	total, err := c.conversations.CountForUser(ctx, userID, params.Search)
	if err != nil {
		return models.ConversationPage{}, fmt.Errorf("count conversations: %w", err)
	}
	page.Total = total
	if total == 0 {
		return page, nil
	}

	convs, err := c.conversations.ListForUser(ctx, userID, params.Search, params.Limit, (params.Page-1)*params.Limit)
	if err != nil {
		return models.ConversationPage{}, fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return page, nil
	}
	ids := make([]int64, len(convs))
	for i, conv := range convs {
		ids[i] = conv.ID
	}

	var (
		unread       []models.UnreadCount
		participants []models.Participant
		latest       []models.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		unread, err = c.messages.UnreadCounts(gctx, userID, ids)
		if err != nil {
			return fmt.Errorf("unread counts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		participants, err = c.conversations.ListParticipants(gctx, ids)
		if err != nil {
			return fmt.Errorf("participants: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		latest, err = c.messages.LastVisible(gctx, userID, ids)
		if err != nil {
			return fmt.Errorf("last messages: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.ConversationPage{}, err
	}

	unreadByConv := make(map[int64]int64, len(unread))
	for _, u := range unread {
		unreadByConv[u.ConversationID] = u.Count
	}
	rosters := make(map[int64][]int64, len(ids))
	for _, p := range participants {
		rosters[p.ConversationID] = append(rosters[p.ConversationID], p.UserID)
	}
	lastByConv := make(map[int64]models.MessageView, len(latest))
	for _, m := range latest {
		lastByConv[m.ConversationID] = Project(m)
	}

	for _, conv := range convs {
		roster := NewParticipantSet(rosters[conv.ID]...).IDs()
		summary := models.ConversationSummary{
			ID:             conv.ID,
			Title:          conv.Title,
			IsDirect:       conv.IsDirect(len(roster)),
			ParticipantIDs: roster,
			UnreadCount:    unreadByConv[conv.ID],
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
		}
		if view, ok := lastByConv[conv.ID]; ok {
			summary.LastMessage = &view
		}
		page.Conversations = append(page.Conversations, summary)
	}
	return page, nil
}

// loadCached serves key from cache or computes it with load and writes it
// back. Cache faults degrade to load.
func loadCached[T any](ctx context.Context, c *Coordinator, kind, key string, load func(context.Context) (T, error)) (T, error) {
	if c.cache == nil {
		return load(ctx)
	}

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		jsonErr := json.Unmarshal([]byte(raw), &cached)
		if jsonErr == nil {
			observability.IncCacheRequest(kind, "hit")
			return cached, nil
		}
		c.logger.Warn().Err(jsonErr).Str("key", key).Msg("discarding undecodable cache entry")
	case errors.Is(err, cache.ErrMiss):
	default:
		observability.IncCacheRequest(kind, "error")
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	observability.IncCacheRequest(kind, "miss")

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return value, nil
	}
	if err := c.cache.Set(ctx, key, string(payload), c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return value, nil
}
