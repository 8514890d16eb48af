// Package pipeline 定义了报价通知的后台处理流程：评估、归档摘要、分发通知。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"orbitx-go/internal/model"
	"orbitx-go/internal/repository"
	"orbitx-go/pkg/log"
	"orbitx-go/pkg/tasks"
)

// BriefArchiver 归档报价摘要并返回可分享的下载链接。
type BriefArchiver interface {
	PutBrief(ctx context.Context, quoteID string, content []byte) (string, error)
}

// Notifier 是通知分发的抽象，*Dispatcher 实现了它。
type Notifier interface {
	Send(ctx context.Context, q *model.QuoteRequest, a model.QuoteAnalysis) bool
}

// Processor 封装了报价通知处理的所有依赖和逻辑，实现 tasks.Handler。
type Processor struct {
	quotes        repository.QuoteStore
	notifications repository.NotificationRepository
	analyzer      *Analyzer
	briefs        BriefArchiver
	notifier      Notifier
}

// NewProcessor 创建一个新的 Processor 实例。briefs 为 nil 时不归档摘要。
func NewProcessor(
	quotes repository.QuoteStore,
	notifications repository.NotificationRepository,
	analyzer *Analyzer,
	briefs BriefArchiver,
	notifier Notifier,
) *Processor {
	return &Processor{
		quotes:        quotes,
		notifications: notifications,
		analyzer:      analyzer,
		briefs:        briefs,
		notifier:      notifier,
	}
}

var _ tasks.Handler = (*Processor)(nil)

// Process 处理一个通知任务。
// 同一张报价单只会被认领一次；认领之后的失败只记录日志，不会再次通知。
func (p *Processor) Process(ctx context.Context, task tasks.NotificationTask) error {
	log.Infof("[Processor] 开始处理报价通知, QuoteID: %s, ConversationID: %s", task.QuoteID, task.ConversationID)

	// 1. 读取报价单
	quote, err := p.quotes.Get(ctx, task.QuoteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warnf("[Processor] 报价单不存在, 跳过通知, QuoteID: %s", task.QuoteID)
			return nil
		}
		return fmt.Errorf("读取报价单失败: %w", err)
	}

	// 2. 认领通知权
	claimed, err := p.notifications.Claim(ctx, quote.ID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Infof("[Processor] 报价单已通知过, 跳过, QuoteID: %s", quote.ID)
		return nil
	}

	// 3. 评估优先级与价值
	analysis := p.analyzer.Analyze(ctx, quote)
	log.Infof("[Processor] 报价评估完成, QuoteID: %s, Priority: %d/10, Value: %s", quote.ID, analysis.Priority, analysis.EstimatedValue)

	// 4. 归档摘要
	if p.briefs != nil {
		link, err := p.briefs.PutBrief(ctx, quote.ID, Brief(quote, analysis))
		if err != nil {
			log.Warnf("[Processor] 归档报价摘要失败, QuoteID: %s, Error: %v", quote.ID, err)
		} else {
			analysis.BriefURL = link
		}
	}

	// 5. 发送通知
	if !p.notifier.Send(ctx, quote, analysis) {
		log.Warnf("[Processor] 报价通知未能送达, QuoteID: %s", quote.ID)
		return nil
	}
	log.Infof("[Processor] 报价通知处理完成, QuoteID: %s", quote.ID)
	return nil
}
