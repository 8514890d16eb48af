package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"orbitx-go/internal/model"
)

// quoteRepository 是 QuoteStore 接口的 GORM 实现。
type quoteRepository struct {
	db *gorm.DB
}

// NewQuoteRepository 创建一个新的 QuoteStore 实例。
func NewQuoteRepository(db *gorm.DB) QuoteStore {
	return &quoteRepository{db: db}
}

// Create 在数据库中创建一条报价单记录。
func (r *quoteRepository) Create(ctx context.Context, quote *model.QuoteRequest) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

// Get 根据 ID 检索报价单。
func (r *quoteRepository) Get(ctx context.Context, id string) (*model.QuoteRequest, error) {
	var quote model.QuoteRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// Delete 删除报价单，记录不存在时不报错。
func (r *quoteRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.QuoteRequest{}).Error
}

// List 按创建时间倒序分页检索报价单，status 为空时不过滤。
// page 从 0 开始。
func (r *quoteRepository) List(ctx context.Context, status string, page, size int) ([]model.QuoteRequest, int64, error) {
	var quotes []model.QuoteRequest
	var total int64

	// 计数和取数各自构造查询，Count 会改写语句中的 SELECT
	filtered := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&model.QuoteRequest{})
		if status != "" {
			query = query.Where("status = ?", status)
		}
		return query
	}
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	err := filtered().Order("created_at DESC").Offset(page * size).Limit(size).Find(&quotes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, total, nil
}

// UpdateStatus 更新报价单状态。
// MySQL 在新旧值相同时影响行数为 0，此时再确认一次记录是否存在。
func (r *quoteRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&model.QuoteRequest{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.QuoteRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
