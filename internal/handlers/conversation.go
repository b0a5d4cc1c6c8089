package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"conversation-service/internal/conversation"
	"conversation-service/internal/middleware"
	"conversation-service/internal/models"
)

// ConversationService is the core consumed by the HTTP layer.
type ConversationService interface {
	CreateOrGetConversation(ctx context.Context, in conversation.CreateConversationInput) (conversation.CreateResult, error)
	ListConversations(ctx context.Context, userID int64, params conversation.ListParams) (models.ConversationPage, error)
	GetConversation(ctx context.Context, conversationID, viewerID int64) (models.ConversationDetail, error)
	ListMessages(ctx context.Context, conversationID, viewerID int64, page, limit int) (models.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, senderID int64, body string) (models.MessageView, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID int64) (int64, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) (int64, error)
	RecallMessage(ctx context.Context, messageID, requesterID int64, scope models.RecallScope) error
}

// ConversationHandler serves the conversation endpoints.
type ConversationHandler struct {
	svc    ConversationService
	logger zerolog.Logger
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(svc ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		svc:    svc,
		logger: logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register mounts the routes on r.
func (h *ConversationHandler) Register(r gin.IRoutes) {
	r.POST("/conversations", h.CreateConversation)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:conversation_id", h.GetConversation)
	r.GET("/conversations/:conversation_id/messages", h.ListMessages)
	r.POST("/conversations/:conversation_id/messages", h.SendMessage)
	r.POST("/conversations/:conversation_id/read", h.MarkRead)
	r.DELETE("/messages/:message_id/recall", h.RecallMessage)
}

// CreateConversation handles POST /conversations.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		ParticipantIDs []int64 `json:"participant_ids" binding:"required"`
		Title          *string `json:"title"`
		Message        *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.CreateOrGetConversation(c.Request.Context(), conversation.CreateConversationInput{
		RequesterID:    userID(c),
		ParticipantIDs: req.ParticipantIDs,
		Title:          req.Title,
		SeedMessage:    req.Message,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	body := gin.H{"conversation": res.Conversation, "created": res.Created}
	if res.SeedMessage != nil {
		body["message"] = res.SeedMessage
	}
	c.JSON(status, body)
}

// ListConversations handles GET /conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}

	result, err := h.svc.ListConversations(c.Request.Context(), userID(c), conversation.ListParams{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetConversation handles GET /conversations/:conversation_id.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conversationID, ok := idParam(c, "conversation_id")
	if !ok {
		return
	}

	detail, err := h.svc.GetConversation(c.Request.Context(), conversationID, userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListMessages handles GET /conversations/:conversation_id/messages.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, ok := idParam(c, "conversation_id")
	if !ok {
		return
	}
	page, limit, ok := pagination(c)
	if !ok {
		return
	}

	msgs, err := h.svc.ListMessages(c.Request.Context(), conversationID, userID(c), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// SendMessage handles POST /conversations/:conversation_id/messages.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	conversationID, ok := idParam(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), conversationID, userID(c), req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /conversations/:conversation_id/read. Without
// message_ids every unread message is marked.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, ok := idParam(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		MessageIDs []int64 `json:"message_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		marked int64
		err    error
	)
	if req.MessageIDs == nil {
		marked, err = h.svc.MarkConversationRead(c.Request.Context(), conversationID, userID(c))
	} else {
		marked, err = h.svc.MarkMessagesRead(c.Request.Context(), conversationID, userID(c), req.MessageIDs)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// RecallMessage handles DELETE /messages/:message_id/recall?scope=all|self.
func (h *ConversationHandler) RecallMessage(c *gin.Context) {
	messageID, ok := idParam(c, "message_id")
	if !ok {
		return
	}
	scope := models.RecallScope(c.Query("scope"))
	if !scope.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be all or self"})
		return
	}

	if err := h.svc.RecallMessage(c.Request.Context(), messageID, userID(c), scope); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recalled", "scope": scope})
}

func (h *ConversationHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, conversation.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, conversation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, conversation.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).
			Str("route", c.FullPath()).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int, bool) {
	page, err := queryInt(c, "page", conversation.DefaultPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit", conversation.DefaultLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, 0, false
	}
	return page, limit, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
