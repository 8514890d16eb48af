package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	notifyClaimTTL  = 7 * 24 * time.Hour
	attemptsKeyTTL  = 24 * time.Hour
	notifyKeyPrefix = "notify:quote:"
)

// NotificationRepository 记录报价通知的派发状态，保证每张报价单最多通知一次。
type NotificationRepository interface {
	// Claim 尝试占用 quoteID 的通知权，只有第一次调用返回 true。
	Claim(ctx context.Context, quoteID string) (bool, error)
	// IncrAttempts 增加任务失败次数并返回累计值。
	IncrAttempts(ctx context.Context, taskKey string) (int64, error)
	ResetAttempts(ctx context.Context, taskKey string) error
}

type redisNotificationRepository struct {
	redisClient *redis.Client
}

// NewNotificationRepository 创建一个新的 NotificationRepository 实例。
func NewNotificationRepository(redisClient *redis.Client) NotificationRepository {
	return &redisNotificationRepository{redisClient: redisClient}
}

func (r *redisNotificationRepository) Claim(ctx context.Context, quoteID string) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, notifyKeyPrefix+quoteID, time.Now().Unix(), notifyClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim notification: %w", err)
	}
	return ok, nil
}

func (r *redisNotificationRepository) IncrAttempts(ctx context.Context, taskKey string) (int64, error) {
	key := "notify:attempts:" + taskKey
	attempts, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	_ = r.redisClient.Expire(ctx, key, attemptsKeyTTL).Err()
	return attempts, nil
}

func (r *redisNotificationRepository) ResetAttempts(ctx context.Context, taskKey string) error {
	return r.redisClient.Del(ctx, "notify:attempts:"+taskKey).Err()
}
