package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitx-go/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNotificationRepository_ClaimOnce(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewNotificationRepository(client)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Claim(ctx, "q-1")
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.True(t, mr.Exists("notify:quote:q-1"))
	assert.Equal(t, notifyClaimTTL, mr.TTL("notify:quote:q-1"))
}

func TestNotificationRepository_Attempts(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewNotificationRepository(client)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := repo.IncrAttempts(ctx, "q-1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, attemptsKeyTTL, mr.TTL("notify:attempts:q-1"))

	require.NoError(t, repo.ResetAttempts(ctx, "q-1"))
	assert.False(t, mr.Exists("notify:attempts:q-1"))
}

// countingMessageStore 记录对后端的读取次数。
type countingMessageStore struct {
	mu     sync.Mutex
	msgs   []model.ChatMessage
	recent int
}

func (s *countingMessageStore) Append(_ context.Context, msgs ...*model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		m.ID = uint(len(s.msgs) + 1)
		s.msgs = append(s.msgs, *m)
	}
	return nil
}

func (s *countingMessageStore) Recent(_ context.Context, _ string, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent++
	if len(s.msgs) <= limit {
		return append([]model.ChatMessage(nil), s.msgs...), nil
	}
	return append([]model.ChatMessage(nil), s.msgs[len(s.msgs)-limit:]...), nil
}

func (s *countingMessageStore) List(_ context.Context, _ string) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatMessage(nil), s.msgs...), nil
}

func msg(sender, text string) *model.ChatMessage {
	return &model.ChatMessage{ConversationID: "c-1", Sender: sender, Message: text, MessageType: "text", CreatedAt: time.Now()}
}

func TestCachedMessageStore(t *testing.T) {
	mr, client := newTestRedis(t)
	inner := &countingMessageStore{}
	store := NewCachedMessageStore(inner, client, 4)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, msg("user", "u1"), msg("bot", "b1")))
	// 缓存尚不存在，Append 不会创建它
	assert.False(t, mr.Exists("conversation:c-1:recent"))

	got, err := store.Recent(ctx, "c-1", 4)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, inner.recent)

	require.NoError(t, store.Append(ctx, msg("user", "u2"), msg("bot", "b2"), msg("user", "u3")))

	got, err = store.Recent(ctx, "c-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.recent, "served from cache")
	require.Len(t, got, 4)
	assert.Equal(t, []string{"b1", "u2", "b2", "u3"}, texts(got))

	got, err = store.Recent(ctx, "c-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "u3"}, texts(got))

	// 超出缓存窗口的查询直接读后端
	_, err = store.Recent(ctx, "c-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.recent)
}

func TestCachedMessageStore_CorruptEntryFallsBack(t *testing.T) {
	mr, client := newTestRedis(t)
	inner := &countingMessageStore{}
	store := NewCachedMessageStore(inner, client, 4)
	ctx := context.Background()

	require.NoError(t, inner.Append(ctx, msg("user", "u1")))
	_, err := mr.Push("conversation:c-1:recent", "not-json")
	require.NoError(t, err)

	got, err := store.Recent(ctx, "c-1", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, texts(got))
	assert.False(t, mr.Exists("conversation:c-1:recent"))
}

func texts(msgs []model.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Message
	}
	return out
}
