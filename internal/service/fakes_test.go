package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"orbitx-go/internal/model"
	"orbitx-go/internal/repository"
	"orbitx-go/pkg/tasks"
)

// memStore 是三个存储接口的内存实现，LinkQuote 与真实后端一样是条件写入。
type memStore struct {
	mu            sync.Mutex
	conversations map[string]model.Conversation
	messages      []model.ChatMessage
	quotes        map[string]model.QuoteRequest
	deleted       []string
	nextID        uint

	createErr error
	linkErr   error
}

func newMemStore() *memStore {
	return &memStore{
		conversations: map[string]model.Conversation{},
		quotes:        map[string]model.QuoteRequest{},
	}
}

func (m *memStore) stores() repository.Stores {
	return repository.Stores{Conversations: convStore{m}, Messages: msgStore{m}, Quotes: quoteStore{m}}
}

func cloneConv(c model.Conversation) *model.Conversation {
	c.Services = append([]string{}, c.Services...)
	if c.QuoteRequestID != nil {
		id := *c.QuoteRequestID
		c.QuoteRequestID = &id
	}
	return &c
}

type convStore struct{ m *memStore }

func (s convStore) GetOrCreate(_ context.Context, id string) (*model.Conversation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.conversations[id]
	if !ok {
		c = model.Conversation{ID: id, Status: "active", Services: []string{}}
		s.m.conversations[id] = c
	}
	return cloneConv(c), nil
}

func (s convStore) Get(_ context.Context, id string) (*model.Conversation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneConv(c), nil
}

func (s convStore) SaveState(_ context.Context, conv *model.Conversation) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored := s.m.conversations[conv.ID]
	next := *cloneConv(*conv)
	next.QuoteRequestID = stored.QuoteRequestID
	s.m.conversations[conv.ID] = next
	return nil
}

func (s convStore) LinkQuote(_ context.Context, conversationID, quoteID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.linkErr != nil {
		return false, s.m.linkErr
	}
	c, ok := s.m.conversations[conversationID]
	if !ok || c.QuoteRequestID != nil {
		return false, nil
	}
	c.QuoteRequestID = &quoteID
	s.m.conversations[conversationID] = c
	return true, nil
}

type msgStore struct{ m *memStore }

func (s msgStore) Append(_ context.Context, msgs ...*model.ChatMessage) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, msg := range msgs {
		s.m.nextID++
		msg.ID = s.m.nextID
		s.m.messages = append(s.m.messages, *msg)
	}
	return nil
}

func (s msgStore) List(_ context.Context, conversationID string) ([]model.ChatMessage, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.ChatMessage{}
	for _, msg := range s.m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s msgStore) Recent(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error) {
	all, _ := s.List(ctx, conversationID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type quoteStore struct{ m *memStore }

func (s quoteStore) Create(_ context.Context, q *model.QuoteRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.createErr != nil {
		return s.m.createErr
	}
	s.m.quotes[q.ID] = *q
	return nil
}

func (s quoteStore) Get(_ context.Context, id string) (*model.QuoteRequest, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.quotes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (s quoteStore) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.quotes, id)
	s.m.deleted = append(s.m.deleted, id)
	return nil
}

func (s quoteStore) List(_ context.Context, status string, page, size int) ([]model.QuoteRequest, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var all []model.QuoteRequest
	for _, q := range s.m.quotes {
		if status == "" || q.Status == status {
			all = append(all, q)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := min(start+size, len(all))
	return all[start:end], total, nil
}

func (s quoteStore) UpdateStatus(_ context.Context, id, status string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q, ok := s.m.quotes[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.Status = status
	s.m.quotes[id] = q
	return nil
}

// recordingQueue 记录所有入队的通知任务。
type recordingQueue struct {
	mu    sync.Mutex
	tasks []tasks.NotificationTask
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task tasks.NotificationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

var errStoreDown = errors.New("store unavailable")
