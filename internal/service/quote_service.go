package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"orbitx-go/internal/intake"
	"orbitx-go/internal/model"
	"orbitx-go/internal/pipeline"
	"orbitx-go/internal/repository"
	"orbitx-go/pkg/log"
	"orbitx-go/pkg/phone"
	"orbitx-go/pkg/tasks"
)

// 报价单字段在会话中缺失时使用的默认值。
const (
	DefaultBudget   = "To be discussed"
	DefaultTimeline = "Standard"
	defaultService  = "General Design"
)

var (
	// ErrQuoteAlreadyLinked 表示会话已关联报价单，本次不会再创建。
	ErrQuoteAlreadyLinked = errors.New("conversation already has a quote")
	// ErrInvalidStatus 表示报价单状态值不合法。
	ErrInvalidStatus = errors.New("invalid quote status")
)

// QuoteConfig 是报价服务的可调参数。
type QuoteConfig struct {
	BrandName         string
	PhoneRegion       string
	WhatsAppNumber    string
	DescriptionWindow int
}

// QuoteService 定义了报价单的创建触发与后台管理操作。
type QuoteService interface {
	// MaybeTrigger 为已就绪的会话创建报价单并关联到会话，每个会话最多成功一次。
	// recentUserMessages 按时间升序，用于生成项目描述。
	MaybeTrigger(ctx context.Context, conv *model.Conversation, recentUserMessages []string) (string, error)

	ListQuotes(ctx context.Context, status string, page, size int) (*model.QuoteListResponse, error)
	GetQuote(ctx context.Context, id string) (*model.QuoteRequest, error)
	UpdateStatus(ctx context.Context, id, status string) error
	// WhatsAppLink 返回一个预填报价详情的 wa.me 链接。
	WhatsAppLink(ctx context.Context, id string) (string, error)
}

type quoteService struct {
	conversations repository.ConversationStore
	quotes        repository.QuoteStore
	queue         tasks.Queue
	analyzer      *pipeline.Analyzer
	cfg           QuoteConfig
}

// NewQuoteService 创建一个新的 QuoteService 实例。
func NewQuoteService(conversations repository.ConversationStore, quotes repository.QuoteStore, queue tasks.Queue, analyzer *pipeline.Analyzer, cfg QuoteConfig) QuoteService {
	if cfg.DescriptionWindow <= 0 {
		cfg.DescriptionWindow = 5
	}
	return &quoteService{
		conversations: conversations,
		quotes:        quotes,
		queue:         queue,
		analyzer:      analyzer,
		cfg:           cfg,
	}
}

func (s *quoteService) MaybeTrigger(ctx context.Context, conv *model.Conversation, recentUserMessages []string) (string, error) {
	if conv.HasQuote() {
		return "", ErrQuoteAlreadyLinked
	}

	quote := BuildQuote(intake.SnapshotOf(conv), conv.ID, lastN(recentUserMessages, s.cfg.DescriptionWindow), s.cfg.PhoneRegion)
	quote.ID = uuid.NewString()
	quote.CreatedAt = time.Now()
	if err := s.quotes.Create(ctx, quote); err != nil {
		return "", fmt.Errorf("创建报价单失败: %w", err)
	}

	linked, err := s.conversations.LinkQuote(ctx, conv.ID, quote.ID)
	if err != nil {
		// 条件更新可能已生效但响应丢失，以存储中的实际值为准
		linked = s.linkedTo(ctx, conv.ID, quote.ID)
	}
	if !linked {
		s.discard(ctx, quote.ID)
		if err != nil {
			return "", fmt.Errorf("关联报价单失败: %w", err)
		}
		log.Infow("会话已被并发请求关联报价单, 丢弃本次创建", "conversation", conv.ID, "quote", quote.ID)
		return "", ErrQuoteAlreadyLinked
	}
	conv.QuoteRequestID = &quote.ID
	log.Infow("报价单已创建", "conversation", conv.ID, "quote", quote.ID, "services", quote.ServicesRequested)

	// 通知是尽力而为的：入队失败只记录日志，报价单本身才是可靠的记录
	task := tasks.NotificationTask{QuoteID: quote.ID, ConversationID: conv.ID, CreatedAt: quote.CreatedAt}
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), task); err != nil {
		log.Errorw("报价通知任务入队失败", "quote", quote.ID, "error", err)
	}
	return quote.ID, nil
}

func (s *quoteService) linkedTo(ctx context.Context, conversationID, quoteID string) bool {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return false
	}
	return conv.QuoteRequestID != nil && *conv.QuoteRequestID == quoteID
}

// discard 删除未能关联到会话的报价单。
func (s *quoteService) discard(ctx context.Context, quoteID string) {
	if err := s.quotes.Delete(context.WithoutCancel(ctx), quoteID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Errorw("删除未关联的报价单失败", "quote", quoteID, "error", err)
	}
}

// BuildQuote 根据会话快照生成报价单，缺失的预算和工期使用默认值。
func BuildQuote(s intake.Snapshot, conversationID string, recentUserMessages []string, phoneRegion string) *model.QuoteRequest {
	services := strings.Join(s.Services, ", ")
	if services == "" {
		services = defaultService
	}
	budget := s.Budget
	if budget == "" {
		budget = DefaultBudget
	}
	timeline := s.Timeline
	if timeline == "" {
		timeline = DefaultTimeline
	}
	return &model.QuoteRequest{
		ClientName:             s.Name,
		Email:                  s.Email,
		Phone:                  phone.NormalizeE164(s.Phone, phoneRegion),
		CompanyName:            s.Company,
		ServicesRequested:      services,
		ProjectDescription:     ProjectDescription(s, recentUserMessages),
		BudgetRange:            budget,
		Timeline:               timeline,
		AdditionalRequirements: s.Notes,
		Status:                 model.QuoteStatusPending,
		Source:                 model.QuoteSourceChatbot,
		ConversationID:         conversationID,
	}
}

// ProjectDescription 汇总服务类别、公司、预算和最近的用户消息。
func ProjectDescription(s intake.Snapshot, recentUserMessages []string) string {
	services := "General design services"
	if len(s.Services) > 0 {
		services = strings.Join(s.Services, ", ")
	}
	parts := []string{
		"Project initiated through AI chatbot conversation.",
		fmt.Sprintf("Services requested: %s.", services),
	}
	if s.Company != "" {
		parts = append(parts, "Company: "+s.Company)
	}
	if s.Budget != "" {
		parts = append(parts, "Budget mentioned: "+s.Budget)
	}
	var msgs []string
	for _, m := range recentUserMessages {
		if m = strings.TrimSpace(m); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > 0 {
		parts = append(parts, "User requirements: "+strings.Join(msgs, " | "))
	}
	return strings.Join(parts, " ")
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func (s *quoteService) ListQuotes(ctx context.Context, status string, page, size int) (*model.QuoteListResponse, error) {
	if status != "" && !model.ValidQuoteStatus(status) {
		return nil, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}
	quotes, total, err := s.quotes.List(ctx, status, page, size)
	if err != nil {
		return nil, err
	}

	items := make([]model.QuoteListItem, 0, len(quotes))
	for _, q := range quotes {
		items = append(items, model.QuoteListItem{
			ID:                q.ID,
			ClientName:        q.ClientName,
			Email:             q.Email,
			ServicesRequested: q.ServicesRequested,
			Status:            q.Status,
			CreatedAt:         model.LocalTime(q.CreatedAt),
		})
	}
	return &model.QuoteListResponse{
		Content:       items,
		TotalElements: total,
		TotalPages:    int(math.Ceil(float64(total) / float64(size))),
		Size:          size,
		Number:        page,
	}, nil
}

func (s *quoteService) GetQuote(ctx context.Context, id string) (*model.QuoteRequest, error) {
	return s.quotes.Get(ctx, id)
}

func (s *quoteService) UpdateStatus(ctx context.Context, id, status string) error {
	if !model.ValidQuoteStatus(status) {
		return ErrInvalidStatus
	}
	return s.quotes.UpdateStatus(ctx, id, status)
}

func (s *quoteService) WhatsAppLink(ctx context.Context, id string) (string, error) {
	if s.cfg.WhatsAppNumber == "" {
		return "", errors.New("whatsapp target number not configured")
	}
	quote, err := s.quotes.Get(ctx, id)
	if err != nil {
		return "", err
	}
	analysis := s.analyzer.Analyze(ctx, quote)
	return pipeline.WhatsAppLink(s.cfg.WhatsAppNumber, pipeline.RichMessage(s.cfg.BrandName, quote, analysis)), nil
}
