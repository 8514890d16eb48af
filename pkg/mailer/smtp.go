// Package mailer 通过 SMTP 发送团队通知邮件。
package mailer

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"orbitx-go/internal/config"
)

// SMTPSender 使用 go-mail 直连 SMTP 服务器发送纯文本邮件。
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender 创建一个新的 SMTPSender。
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Configured 判断是否具备发送邮件所需的最少配置。
func (s *SMTPSender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.FromEmail != "" && s.cfg.TeamEmail != ""
}

// BuildMessage 组装发给团队的邮件。
func (s *SMTPSender) BuildMessage(subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.cfg.TeamEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// SendToTeam 把一封纯文本邮件发到团队邮箱。
func (s *SMTPSender) SendToTeam(ctx context.Context, subject, body string) error {
	if !s.Configured() {
		return fmt.Errorf("smtp not configured")
	}
	msg, err := s.BuildMessage(subject, body)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
