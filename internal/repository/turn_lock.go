package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	turnLockPrefix = "lock:conversation:"
	turnLockTTL    = 30 * time.Second
	turnLockWait   = 10 * time.Second
	turnLockRetry  = 25 * time.Millisecond
)

// ErrLockTimeout 表示在等待时限内没有拿到会话锁。
var ErrLockTimeout = errors.New("timed out waiting for conversation lock")

// TurnLocker 串行化同一会话的对话轮次。
// Lock 阻塞到拿到锁为止，返回的 unlock 必须调用且只调用一次。
type TurnLocker interface {
	Lock(ctx context.Context, conversationID string) (unlock func(), err error)
}

// releaseTurnLock 只删除仍由 owner 持有的锁。
var releaseTurnLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisTurnLocker struct {
	redisClient *redis.Client
	wait        time.Duration
}

// NewRedisTurnLocker 创建基于 Redis SET NX 的会话锁，多实例部署时共享。
func NewRedisTurnLocker(redisClient *redis.Client) TurnLocker {
	return &redisTurnLocker{redisClient: redisClient, wait: turnLockWait}
}

func (l *redisTurnLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	key := turnLockPrefix + conversationID
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.redisClient.SetNX(ctx, key, owner, turnLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
		}
		if ok {
			return func() {
				// 请求的 ctx 可能已取消，释放时使用独立的超时
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseTurnLock.Run(releaseCtx, l.redisClient, []string{key}, owner).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(turnLockRetry):
		}
	}
}

// localTurnLocker 是进程内的会话锁，条目在无人持有或等待时回收。
type localTurnLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalTurnLocker 创建进程内的会话锁，适用于单实例部署和测试。
func NewLocalTurnLocker() TurnLocker {
	return &localTurnLocker{locks: make(map[string]*localLock)}
}

func (l *localTurnLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[conversationID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[conversationID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(conversationID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(conversationID, lk)
		})
	}, nil
}

func (l *localTurnLocker) release(conversationID string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, conversationID)
	}
}
