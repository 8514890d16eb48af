// Package repository 定义了会话、消息和报价单的持久化接口，以及 MySQL 与 Elasticsearch 两套实现。
// 具体使用哪一套在启动时由 storage.backend 决定，上层服务不感知后端类型。
package repository

import (
	"context"
	"errors"

	"orbitx-go/internal/model"
)

// ErrNotFound 表示请求的记录不存在。
var ErrNotFound = errors.New("record not found")

// ConversationStore 定义了会话记录的持久化操作。
type ConversationStore interface {
	// GetOrCreate 返回已有会话，不存在时创建一个空会话；可在每一轮安全调用。
	GetOrCreate(ctx context.Context, id string) (*model.Conversation, error)
	Get(ctx context.Context, id string) (*model.Conversation, error)
	// SaveState 保存会话的累积状态，不会修改已关联的报价单 ID。
	SaveState(ctx context.Context, conv *model.Conversation) error
	// LinkQuote 仅当会话尚未关联报价单时写入 quoteID，返回是否写入成功。
	LinkQuote(ctx context.Context, conversationID, quoteID string) (bool, error)
}

// MessageStore 定义了会话消息的持久化操作。消息写入后不可修改。
type MessageStore interface {
	// Append 在一次请求中写入一批消息（通常是一轮对话的用户消息和机器人回复）。
	Append(ctx context.Context, msgs ...*model.ChatMessage) error
	// Recent 返回最近 limit 条消息，按时间升序。
	Recent(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error)
	// List 返回会话的全部消息，按时间升序。
	List(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
}

// QuoteStore 定义了报价单的持久化操作。
type QuoteStore interface {
	Create(ctx context.Context, quote *model.QuoteRequest) error
	Get(ctx context.Context, id string) (*model.QuoteRequest, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, status string, page, size int) ([]model.QuoteRequest, int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// Stores 聚合了一个后端的全部存储实现。
type Stores struct {
	Conversations ConversationStore
	Messages      MessageStore
	Quotes        QuoteStore
}
