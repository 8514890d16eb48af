// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"orbitx-go/internal/config"
	"orbitx-go/internal/intake"
	"orbitx-go/internal/model"
	"orbitx-go/internal/repository"
	"orbitx-go/pkg/log"
)

// ErrEmptyMessage 表示用户消息为空，调用方应在进入规则引擎前拒绝。
var ErrEmptyMessage = errors.New("message is required")

// ErrConversationIDTooLong 表示会话 ID 超过了存储列宽。
var ErrConversationIDTooLong = errors.New("conversation id is too long")

// ChatConfig 是对话服务的可调参数。
type ChatConfig struct {
	HistoryWindow     int
	DescriptionWindow int
}

// ChatService 定义了报价助手的对话操作。
type ChatService interface {
	// ProcessMessage 处理一轮用户输入：抽取、分类、合并状态、判断就绪、按需创建报价单并回复。
	// conversationID 为空时生成新的会话 ID。
	ProcessMessage(ctx context.Context, conversationID, text string, info *model.UserInfo) (*model.TurnResult, error)
	// GetHistory 按时间升序返回会话消息，未知会话返回空列表。
	GetHistory(ctx context.Context, conversationID string) ([]model.HistoryEntry, error)
	// Services 返回对外展示的服务目录。
	Services() []config.ServiceListing
}

type chatService struct {
	conversations repository.ConversationStore
	messages      repository.MessageStore
	quotes        QuoteService
	replies       *ReplyGenerator
	locker        repository.TurnLocker
	cfg           ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。
// locker 为 nil 时使用进程内的会话锁。
func NewChatService(conversations repository.ConversationStore, messages repository.MessageStore, quotes QuoteService, replies *ReplyGenerator, locker repository.TurnLocker, cfg ChatConfig) ChatService {
	if locker == nil {
		locker = repository.NewLocalTurnLocker()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.DescriptionWindow <= 0 {
		cfg.DescriptionWindow = 5
	}
	return &chatService{
		conversations: conversations,
		messages:      messages,
		quotes:        quotes,
		locker:        locker,
		replies:       replies,
		cfg:           cfg,
	}
}

func (s *chatService) ProcessMessage(ctx context.Context, conversationID, text string, info *model.UserInfo) (*model.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(conversationID) > model.MaxConversationIDLen {
		return nil, ErrConversationIDTooLong
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	received := time.Now()

	st, err := s.advance(ctx, conversationID, text, info)
	if err != nil {
		return nil, err
	}
	conv, intent, outcome, quoteID := st.conv, st.intent, st.outcome, st.quoteID

	// 4. 生成回复并成对写入本轮消息
	reply := s.replies.Reply(ctx, ReplyInput{
		Text:       text,
		Snapshot:   st.snap,
		Intent:     intent,
		Evaluation: st.eval,
		Outcome:    outcome,
		History:    st.recent,
	})
	userMsg := &model.ChatMessage{
		ConversationID: conversationID,
		Sender:         model.SenderUser,
		Message:        text,
		MessageType:    "text",
		CreatedAt:      received,
	}
	botMsg := &model.ChatMessage{
		ConversationID: conversationID,
		Sender:         model.SenderBot,
		Message:        reply,
		MessageType:    "text",
		Metadata: &model.MessageMetadata{
			Intent:       intent.Label,
			Services:     conv.Services,
			QuoteCreated: outcome == outcomeCreated,
			QuoteID:      quoteID,
		},
		CreatedAt: time.Now(),
	}
	if !botMsg.CreatedAt.After(received) {
		botMsg.CreatedAt = received.Add(time.Microsecond)
	}
	if err := s.messages.Append(ctx, userMsg, botMsg); err != nil {
		log.Errorf("保存对话消息失败, conversation=%s, err=%v", conversationID, err)
	}

	return &model.TurnResult{
		Success:        true,
		BotResponse:    reply,
		ConversationID: conversationID,
		Intent:         intent.Label,
		Services:       conv.Services,
		QuoteCreated:   outcome == outcomeCreated,
		QuoteID:        quoteID,
	}, nil
}

// turnState 是一轮对话在状态合并与报价判断之后的结果。
type turnState struct {
	conv    *model.Conversation
	recent  []model.ChatMessage
	intent  intake.Intent
	snap    intake.Snapshot
	eval    intake.Evaluation
	outcome turnOutcome
	quoteID string
}

// advance 在会话锁内完成读取、合并、保存和报价触发，同一会话的并发轮次依次执行。
func (s *chatService) advance(ctx context.Context, conversationID, text string, info *model.UserInfo) (*turnState, error) {
	unlock, err := s.locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	// 1. 读取或创建会话，以及最近的消息窗口
	conv, err := s.conversations.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	recent, err := s.messages.Recent(ctx, conversationID, s.cfg.HistoryWindow)
	if err != nil {
		log.Warnf("读取最近消息失败, 按空历史处理, conversation=%s, err=%v", conversationID, err)
		recent = nil
	}
	userTexts := userMessages(recent)

	// 2. 规则引擎：抽取、分类、合并
	intent := intake.Classify(text)
	intake.Apply(conv, intake.Turn{
		Text:            text,
		Extraction:      intake.Extract(text),
		Intent:          intent,
		UserInfo:        info,
		HistoryServices: intake.UnionServices(mapServices(userTexts)...),
	})
	if err := s.conversations.SaveState(ctx, conv); err != nil {
		log.Errorf("保存会话状态失败, conversation=%s, err=%v", conversationID, err)
	}

	// 3. 判断就绪并按需创建报价单
	st := &turnState{conv: conv, recent: recent, intent: intent, snap: intake.SnapshotOf(conv)}
	st.eval = intake.Evaluate(st.snap, intent)
	switch {
	case conv.HasQuote():
		// 已有报价单：只有再次确认时才提示已提交，其余消息正常答复
		if intent.Confirmed {
			st.outcome = outcomeExisting
		}
	case st.eval.Ready:
		st.quoteID, err = s.quotes.MaybeTrigger(ctx, conv, lastN(append(userTexts, text), s.cfg.DescriptionWindow))
		switch {
		case err == nil:
			st.outcome = outcomeCreated
		case errors.Is(err, ErrQuoteAlreadyLinked):
			st.outcome = outcomeExisting
		default:
			log.Errorf("创建报价单失败, conversation=%s, err=%v", conversationID, err)
			st.outcome = outcomeFailed
		}
	}
	return st, nil
}

func (s *chatService) GetHistory(ctx context.Context, conversationID string) ([]model.HistoryEntry, error) {
	msgs, err := s.messages.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	history := make([]model.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, model.HistoryEntry{
			Sender:    m.Sender,
			Message:   m.Message,
			Timestamp: m.CreatedAt,
			Metadata:  m.Metadata,
		})
	}
	return history, nil
}

func (s *chatService) Services() []config.ServiceListing {
	return s.replies.Catalogue()
}

func userMessages(msgs []model.ChatMessage) []string {
	var out []string
	for _, m := range msgs {
		if m.Sender == model.SenderUser {
			out = append(out, m.Message)
		}
	}
	return out
}

func mapServices(texts []string) [][]string {
	out := make([][]string, 0, len(texts))
	for _, t := range texts {
		out = append(out, intake.DetectServices(t))
	}
	return out
}
