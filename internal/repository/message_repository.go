package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"orbitx-go/internal/model"
)

// messageRepository 是 MessageStore 接口的 GORM 实现。
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageStore 实例。
func NewMessageRepository(db *gorm.DB) MessageStore {
	return &messageRepository{db: db}
}

// Append 以单条批量 INSERT 写入，一轮对话的两条消息要么都写入要么都不写入。
func (r *messageRepository) Append(ctx context.Context, msgs ...*model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(msgs).Error; err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

func (r *messageRepository) Recent(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	reverse(msgs)
	return msgs, nil
}

func (r *messageRepository) List(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	msgs := []model.ChatMessage{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func reverse(msgs []model.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
