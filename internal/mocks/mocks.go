package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"conversation-service/internal/cache"
	"conversation-service/internal/conversation"
	"conversation-service/internal/models"
)

type ConversationServiceMock struct {
	mock.Mock
}

func (m *ConversationServiceMock) CreateOrGetConversation(ctx context.Context, in conversation.CreateConversationInput) (conversation.CreateResult, error) {
	args := m.Called(ctx, in)
	var res conversation.CreateResult
	if val := args.Get(0); val != nil {
		res = val.(conversation.CreateResult)
	}
	return res, args.Error(1)
}

func (m *ConversationServiceMock) ListConversations(ctx context.Context, userID int64, params conversation.ListParams) (models.ConversationPage, error) {
	args := m.Called(ctx, userID, params)
	var page models.ConversationPage
	if val := args.Get(0); val != nil {
		page = val.(models.ConversationPage)
	}
	return page, args.Error(1)
}

func (m *ConversationServiceMock) GetConversation(ctx context.Context, conversationID, viewerID int64) (models.ConversationDetail, error) {
	args := m.Called(ctx, conversationID, viewerID)
	var detail models.ConversationDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.ConversationDetail)
	}
	return detail, args.Error(1)
}

func (m *ConversationServiceMock) ListMessages(ctx context.Context, conversationID, viewerID int64, page, limit int) (models.MessagePage, error) {
	args := m.Called(ctx, conversationID, viewerID, page, limit)
	var msgs models.MessagePage
	if val := args.Get(0); val != nil {
		msgs = val.(models.MessagePage)
	}
	return msgs, args.Error(1)
}

func (m *ConversationServiceMock) SendMessage(ctx context.Context, conversationID, senderID int64, body string) (models.MessageView, error) {
	args := m.Called(ctx, conversationID, senderID, body)
	var view models.MessageView
	if val := args.Get(0); val != nil {
		view = val.(models.MessageView)
	}
	return view, args.Error(1)
}

func (m *ConversationServiceMock) MarkConversationRead(ctx context.Context, conversationID, readerID int64) (int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ConversationServiceMock) MarkMessagesRead(ctx context.Context, conversationID, readerID int64, messageIDs []int64) (int64, error) {
	args := m.Called(ctx, conversationID, readerID, messageIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ConversationServiceMock) RecallMessage(ctx context.Context, messageID, requesterID int64, scope models.RecallScope) error {
	args := m.Called(ctx, messageID, requesterID, scope)
	return args.Error(0)
}

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *CacheMock) Del(ctx context.Context, keys ...string) (int64, error) {
	args := m.Called(ctx, keys)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CacheMock) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CacheMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *CacheMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type EventPublisherMock struct {
	mock.Mock
}

func (m *EventPublisherMock) Publish(ctx context.Context, event models.ConversationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var _ cache.Cache = (*CacheMock)(nil)
var _ conversation.EventPublisher = (*EventPublisherMock)(nil)
