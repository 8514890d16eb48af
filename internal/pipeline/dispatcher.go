package pipeline

import (
	"context"
	"fmt"

	"orbitx-go/internal/model"
	"orbitx-go/pkg/log"
)

// SMSSender 发送短信，返回服务商的消息 ID。
type SMSSender interface {
	Send(ctx context.Context, to, message string) (string, error)
}

// TeamMailer 向团队邮箱发送邮件。
type TeamMailer interface {
	SendToTeam(ctx context.Context, subject, body string) error
}

// Dispatcher 把报价通知发给团队：优先短信，失败或未配置时退回邮件（附 WhatsApp 链接）。
type Dispatcher struct {
	brand          string
	sms            SMSSender
	smsTarget      string
	mailer         TeamMailer
	whatsappNumber string
}

// NewDispatcher 创建通知分发器。sms 或 mailer 为 nil 表示对应渠道未启用。
func NewDispatcher(brand string, sms SMSSender, smsTarget string, mailer TeamMailer, whatsappNumber string) *Dispatcher {
	return &Dispatcher{
		brand:          brand,
		sms:            sms,
		smsTarget:      smsTarget,
		mailer:         mailer,
		whatsappNumber: whatsappNumber,
	}
}

// Send 发送一条报价通知，任一渠道成功即返回 true。
func (d *Dispatcher) Send(ctx context.Context, q *model.QuoteRequest, a model.QuoteAnalysis) bool {
	if d.sms != nil && d.smsTarget != "" {
		msgID, err := d.sms.Send(ctx, d.smsTarget, SMSMessage(d.brand, q, a))
		if err == nil {
			log.Infow("报价短信通知已发送", "quote", q.ID, "priority", a.Priority, "message_id", msgID)
			return true
		}
		log.Warnw("报价短信通知失败, 改用邮件", "quote", q.ID, "error", err)
	}

	if d.mailer == nil {
		log.Warnw("没有可用的通知渠道", "quote", q.ID)
		return false
	}
	rich := RichMessage(d.brand, q, a)
	body := rich
	if d.whatsappNumber != "" {
		body = fmt.Sprintf("%s\n\nWhatsApp: %s", rich, WhatsAppLink(d.whatsappNumber, rich))
	}
	subject := fmt.Sprintf("[%s] New quote request from %s", PriorityLabel(a.Priority), q.ClientName)
	if err := d.mailer.SendToTeam(ctx, subject, body); err != nil {
		log.Errorw("报价邮件通知失败", "quote", q.ID, "error", err)
		return false
	}
	log.Infow("报价邮件通知已发送", "quote", q.ID, "priority", a.Priority)
	return true
}
