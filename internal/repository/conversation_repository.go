package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orbitx-go/internal/model"
)

const conversationStatusActive = "active"

// 会话状态保存时写入的列，quote_request_id 不在其中。
var conversationStateColumns = []string{
	"session_id", "user_name", "user_email", "user_phone", "user_company", "services",
	"budget", "timeline", "project_notes", "last_intent", "confirmed", "status", "schema_version",
}

// conversationRepository 是 ConversationStore 接口的 GORM 实现。
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationStore 实例。
func NewConversationRepository(db *gorm.DB) ConversationStore {
	return &conversationRepository{db: db}
}

// GetOrCreate 使用 INSERT ... ON DUPLICATE KEY 保证并发首轮请求只会产生一条会话记录。
func (r *conversationRepository) GetOrCreate(ctx context.Context, id string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:            id,
		Services:      []string{},
		Status:        conversationStatusActive,
		SchemaVersion: model.ConversationSchemaVersion,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return r.Get(ctx, id)
}

// Get 根据 ID 查找会话。
func (r *conversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv.Services == nil {
		conv.Services = []string{}
	}
	return &conv, nil
}

// SaveState 只更新累积状态列。
func (r *conversationRepository) SaveState(ctx context.Context, conv *model.Conversation) error {
	err := r.db.WithContext(ctx).Model(conv).Select(conversationStateColumns).Updates(conv).Error
	if err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

// LinkQuote 以条件更新实现比较并设置：只有 quote_request_id 为空的行会被修改。
func (r *conversationRepository) LinkQuote(ctx context.Context, conversationID, quoteID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND quote_request_id IS NULL", conversationID).
		Update("quote_request_id", quoteID)
	if res.Error != nil {
		return false, fmt.Errorf("failed to link quote: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
