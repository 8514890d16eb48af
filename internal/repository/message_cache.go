package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"orbitx-go/internal/model"
	"orbitx-go/pkg/log"
)

const recentCacheTTL = 30 * time.Minute

// cachedMessageStore 在 Redis 列表中缓存每个会话最近的若干条消息，
// 供每轮生成回复和汇总服务类别时读取，避免反复查询后端存储。
type cachedMessageStore struct {
	MessageStore
	redisClient *redis.Client
	window      int
}

// NewCachedMessageStore 用 Redis 为 MessageStore 的 Recent 查询加一层缓存。
// window 是缓存的消息条数上限，超过 window 的查询直接落到后端。
func NewCachedMessageStore(inner MessageStore, redisClient *redis.Client, window int) MessageStore {
	return &cachedMessageStore{MessageStore: inner, redisClient: redisClient, window: window}
}

func recentKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:recent", conversationID)
}

// Append 先写后端，再追加到已存在的缓存列表；缓存不存在时不创建，留给下一次 Recent 回填。
func (s *cachedMessageStore) Append(ctx context.Context, msgs ...*model.ChatMessage) error {
	if err := s.MessageStore.Append(ctx, msgs...); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, b)
	}
	key := recentKey(msgs[0].ConversationID)
	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPushX(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.window), -1)
		return nil
	})
	if err != nil {
		// 缓存写失败时删除整个列表，避免读到缺失消息的历史
		log.Warnf("failed to append recent-message cache for %s: %v", key, err)
		_ = s.redisClient.Del(ctx, key).Err()
	}
	return nil
}

func (s *cachedMessageStore) Recent(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	if limit > s.window {
		return s.MessageStore.Recent(ctx, conversationID, limit)
	}

	key := recentKey(conversationID)
	raw, err := s.redisClient.LRange(ctx, key, int64(-limit), -1).Result()
	if err == nil && len(raw) > 0 {
		msgs := make([]model.ChatMessage, 0, len(raw))
		for _, item := range raw {
			var m model.ChatMessage
			if err := json.Unmarshal([]byte(item), &m); err != nil {
				log.Warnf("discarding corrupt recent-message cache %s: %v", key, err)
				_ = s.redisClient.Del(ctx, key).Err()
				return s.MessageStore.Recent(ctx, conversationID, limit)
			}
			msgs = append(msgs, m)
		}
		return msgs, nil
	}
	if err != nil {
		log.Warnf("failed to read recent-message cache %s: %v", key, err)
	}

	msgs, err := s.MessageStore.Recent(ctx, conversationID, s.window)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, msgs)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *cachedMessageStore) fill(ctx context.Context, key string, msgs []model.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	values := make([]interface{}, 0, len(msgs))
	for i := range msgs {
		b, err := json.Marshal(&msgs[i])
		if err != nil {
			return
		}
		values = append(values, b)
	}
	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, recentCacheTTL)
		return nil
	})
	if err != nil {
		log.Warnf("failed to fill recent-message cache %s: %v", key, err)
	}
}
