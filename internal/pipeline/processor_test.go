package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitx-go/internal/model"
	"orbitx-go/internal/repository"
	"orbitx-go/pkg/llm"
	"orbitx-go/pkg/tasks"
)

type stubQuotes struct {
	repository.QuoteStore
	quotes map[string]*model.QuoteRequest
	err    error
}

func (s *stubQuotes) Get(_ context.Context, id string) (*model.QuoteRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	q, ok := s.quotes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q, nil
}

type stubLLM struct {
	reply string
	err   error
	got   *llm.GenerationParams
}

func (s *stubLLM) Chat(_ context.Context, _ []llm.Message, gen *llm.GenerationParams) (string, error) {
	s.got = gen
	return s.reply, s.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	sent     []model.QuoteAnalysis
	delivers bool
}

func (r *recordingNotifier) Send(_ context.Context, _ *model.QuoteRequest, a model.QuoteAnalysis) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return r.delivers
}

type stubArchiver struct {
	content []byte
	err     error
}

func (s *stubArchiver) PutBrief(_ context.Context, quoteID string, content []byte) (string, error) {
	s.content = content
	if s.err != nil {
		return "", s.err
	}
	return "https://minio.local/" + quoteID, nil
}

func sampleQuote() *model.QuoteRequest {
	return &model.QuoteRequest{
		ID:                 "q-1",
		ClientName:         "Asha",
		Email:              "asha@example.com",
		ServicesRequested:  "logo",
		ProjectDescription: "Project initiated through AI chatbot conversation. Services requested: logo.",
		BudgetRange:        "To be discussed",
		Timeline:           "Standard",
		Status:             model.QuoteStatusPending,
		Source:             model.QuoteSourceChatbot,
		ConversationID:     "c-1",
		CreatedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newNotificationRepo(t *testing.T) repository.NotificationRepository {
	mr := miniredis.RunT(t)
	return repository.NewNotificationRepository(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestProcessor_NotifiesOncePerQuote(t *testing.T) {
	ctx := context.Background()
	quotes := &stubQuotes{quotes: map[string]*model.QuoteRequest{"q-1": sampleQuote()}}
	notifier := &recordingNotifier{delivers: true}
	archiver := &stubArchiver{}
	analyzer := NewAnalyzer(&stubLLM{reply: "Priority: 8/10\nValue: Rs 10,000-20,000"}, "gpt-4o-mini")
	p := NewProcessor(quotes, newNotificationRepo(t), analyzer, archiver, notifier)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Process(ctx, tasks.NotificationTask{QuoteID: "q-1"}))
		}()
	}
	wg.Wait()

	require.Len(t, notifier.sent, 1)
	got := notifier.sent[0]
	assert.Equal(t, 8, got.Priority)
	assert.Equal(t, "Rs 10,000-20,000", got.EstimatedValue)
	assert.Equal(t, AIStrategy, got.Strategy)
	assert.Equal(t, "https://minio.local/q-1", got.BriefURL)
	assert.Contains(t, string(archiver.content), "# Quote q-1")
}

func TestProcessor_MissingQuoteIsSkipped(t *testing.T) {
	notifier := &recordingNotifier{delivers: true}
	p := NewProcessor(&stubQuotes{quotes: map[string]*model.QuoteRequest{}}, newNotificationRepo(t), NewAnalyzer(nil, ""), nil, notifier)

	assert.NoError(t, p.Process(context.Background(), tasks.NotificationTask{QuoteID: "missing"}))
	assert.Empty(t, notifier.sent)
}

func TestProcessor_StoreErrorIsReturned(t *testing.T) {
	notifier := &recordingNotifier{delivers: true}
	p := NewProcessor(&stubQuotes{err: errors.New("db down")}, newNotificationRepo(t), NewAnalyzer(nil, ""), nil, notifier)

	assert.Error(t, p.Process(context.Background(), tasks.NotificationTask{QuoteID: "q-1"}))
	assert.Empty(t, notifier.sent)
}

func TestProcessor_ArchiveFailureStillNotifies(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]*model.QuoteRequest{"q-1": sampleQuote()}}
	notifier := &recordingNotifier{}
	p := NewProcessor(quotes, newNotificationRepo(t), NewAnalyzer(nil, ""), &stubArchiver{err: errors.New("minio down")}, notifier)

	assert.NoError(t, p.Process(context.Background(), tasks.NotificationTask{QuoteID: "q-1"}))
	require.Len(t, notifier.sent, 1)
	assert.Empty(t, notifier.sent[0].BriefURL)
	assert.Equal(t, DefaultPriority, notifier.sent[0].Priority)
}

func TestAnalyzer(t *testing.T) {
	q := sampleQuote()

	t.Run("defaults without client", func(t *testing.T) {
		a := NewAnalyzer(nil, "").Analyze(context.Background(), q)
		assert.Equal(t, DefaultPriority, a.Priority)
		assert.Equal(t, DefaultEstimatedValue, a.EstimatedValue)
		assert.Equal(t, DefaultStrategy, a.Strategy)
		assert.Equal(t, "c-1", a.ConversationID)
	})

	t.Run("defaults on error", func(t *testing.T) {
		a := NewAnalyzer(&stubLLM{err: llm.ErrNotConfigured}, "").Analyze(context.Background(), q)
		assert.Equal(t, DefaultStrategy, a.Strategy)
	})

	t.Run("uses analysis model", func(t *testing.T) {
		client := &stubLLM{reply: "Priority: 3/10"}
		a := NewAnalyzer(client, "gpt-4o-mini").Analyze(context.Background(), q)
		require.NotNil(t, client.got)
		assert.Equal(t, "gpt-4o-mini", client.got.Model)
		assert.Equal(t, 100, *client.got.MaxTokens)
		assert.Equal(t, 3, a.Priority)
		assert.Equal(t, DefaultEstimatedValue, a.EstimatedValue)
	})
}

func TestParseAnalysis(t *testing.T) {
	p, v := ParseAnalysis("Here you go.\npriority: 12/10\nEstimated value: Rs 2,000-4,000")
	assert.Equal(t, 10, p)
	assert.Equal(t, "Rs 2,000-4,000", v)

	p, v = ParseAnalysis("no structure here")
	assert.Equal(t, DefaultPriority, p)
	assert.Equal(t, DefaultEstimatedValue, v)
}

func TestMessages(t *testing.T) {
	q := sampleQuote()
	a := model.QuoteAnalysis{Priority: 6, EstimatedValue: "Rs 1", Strategy: AIStrategy}

	sms := SMSMessage("OrbitX", q, a)
	assert.True(t, strings.HasPrefix(sms, "NEW QUOTE - OrbitX (MEDIUM PRIORITY)"))
	assert.Contains(t, sms, "Action: Send quote to asha@example.com")

	rich := RichMessage("OrbitX", q, a)
	assert.Contains(t, rich, "Phone: Not provided")
	assert.Contains(t, rich, "[AI Chatbot] Source: AI Chatbot Conversation")

	link := WhatsAppLink("+91 95185 36672", "Hi there & bye")
	assert.Equal(t, "https://wa.me/919518536672?text=Hi%20there%20%26%20bye", link)

	assert.Equal(t, "HIGH PRIORITY", PriorityLabel(8))
	assert.Equal(t, "STANDARD", PriorityLabel(5))
}
