package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"orbitx-go/internal/config"
	"orbitx-go/internal/intake"
	"orbitx-go/internal/model"
	"orbitx-go/pkg/llm"
	"orbitx-go/pkg/log"
)

// turnOutcome 描述本轮报价触发的结果。
type turnOutcome int

const (
	outcomeNone turnOutcome = iota
	outcomeCreated
	outcomeExisting
	outcomeFailed
)

// 固定回复文案
const (
	QuoteCreatedReply = "✅ I've created a quote request for you! Our team will review your requirements and send you a " +
		"detailed proposal within 2 hours. We'll reach out on WhatsApp for the next steps."
	QuoteExistingReply = "Your quote request has already been submitted. Our team will contact you on WhatsApp with the next steps."
	QuoteFailedReply   = "I'm sorry, I couldn't create your quote just now because of a technical issue. " +
		"Please say **'yes'** again in a moment, or contact us directly."

	llmHistoryMessages = 6
)

// ReplyInput 是生成一轮回复所需的全部信息。
type ReplyInput struct {
	Text       string
	Snapshot   intake.Snapshot
	Intent     intake.Intent
	Evaluation intake.Evaluation
	Outcome    turnOutcome
	History    []model.ChatMessage
}

// ReplyGenerator 生成机器人回复。配置了大模型时由模型生成开场部分，否则使用规则文案；
// 报价相关的追问和结果提示始终由规则追加。
type ReplyGenerator struct {
	brand    string
	services []config.ServiceListing
	llm      llm.Client
}

// NewReplyGenerator 创建回复生成器。client 可为 nil。
func NewReplyGenerator(brand string, services []config.ServiceListing, client llm.Client) *ReplyGenerator {
	return &ReplyGenerator{brand: brand, services: services, llm: client}
}

// Catalogue 返回服务目录的副本。
func (g *ReplyGenerator) Catalogue() []config.ServiceListing {
	return append([]config.ServiceListing(nil), g.services...)
}

// Reply 生成本轮回复。
func (g *ReplyGenerator) Reply(ctx context.Context, in ReplyInput) string {
	switch in.Outcome {
	case outcomeCreated:
		return QuoteCreatedReply
	case outcomeExisting:
		return QuoteExistingReply
	case outcomeFailed:
		return QuoteFailedReply
	}

	base := g.llmReply(ctx, in)
	if base == "" {
		base = g.ruleReply(in)
	}
	if prompt := in.Evaluation.Prompt; prompt != "" && g.shouldPrompt(in) {
		base += "\n\n" + prompt
	}
	return base
}

// shouldPrompt 在用户表现出报价意向或已留下任何信息时追加追问。
func (g *ReplyGenerator) shouldPrompt(in ReplyInput) bool {
	if in.Evaluation.NeedsConfirmation || in.Intent.Label != intake.IntentGeneral {
		return true
	}
	s := in.Snapshot
	return s.Name != "" || s.Email != "" || len(s.Services) > 0
}

func (g *ReplyGenerator) ruleReply(in ReplyInput) string {
	switch in.Intent.Label {
	case intake.IntentQuoteRequest:
		if len(in.Intent.Services) > 0 {
			return fmt.Sprintf("I'd be happy to prepare a quote for %s. %s", g.describe(in.Intent.Services), g.priceHint(in.Intent.Services))
		}
		return "I'd be happy to prepare a quote for you."
	case intake.IntentServiceInquiry:
		return fmt.Sprintf("Great, we can definitely help with %s. %s", g.describe(in.Intent.Services), g.priceHint(in.Intent.Services))
	}
	if name := in.Snapshot.Name; name != "" {
		return fmt.Sprintf("Thanks, %s!", name)
	}
	return fmt.Sprintf("Hi! I'm the %s assistant. I can help you with logo design, websites, social media, branding, "+
		"packaging and print design, and get you a quote in a couple of messages.", g.brand)
}

func (g *ReplyGenerator) describe(services []string) string {
	names := make([]string, 0, len(services))
	for _, id := range services {
		names = append(names, g.serviceName(id))
	}
	switch len(names) {
	case 0:
		return "your project"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

func (g *ReplyGenerator) priceHint(services []string) string {
	var hints []string
	for _, id := range services {
		for _, l := range g.services {
			if l.ID == id && l.PriceRange != "" {
				hints = append(hints, fmt.Sprintf("%s typically ranges %s", l.Name, l.PriceRange))
			}
		}
	}
	if len(hints) == 0 {
		return ""
	}
	return strings.Join(hints, "; ") + "."
}

func (g *ReplyGenerator) serviceName(id string) string {
	for _, l := range g.services {
		if l.ID == id {
			return l.Name
		}
	}
	return id
}

func (g *ReplyGenerator) llmReply(ctx context.Context, in ReplyInput) string {
	if g.llm == nil {
		return ""
	}
	msgs := []llm.Message{{Role: "system", Content: g.systemPrompt(in.Snapshot)}}
	history := in.History
	if len(history) > llmHistoryMessages {
		history = history[len(history)-llmHistoryMessages:]
	}
	for _, m := range history {
		role := "user"
		if m.Sender == model.SenderBot {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Message})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: in.Text})

	out, err := g.llm.Chat(ctx, msgs, nil)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			log.Warnf("大模型回复失败, 使用规则回复: %v", err)
		}
		return ""
	}
	return out
}

// promptContext 是写入系统提示词的会话上下文。
type promptContext struct {
	Name      string   `json:"user_name,omitempty"`
	Email     string   `json:"user_email,omitempty"`
	Company   string   `json:"user_company,omitempty"`
	Services  []string `json:"detected_services,omitempty"`
	Budget    string   `json:"budget,omitempty"`
	Timeline  string   `json:"timeline,omitempty"`
	Confirmed bool     `json:"quote_confirmed"`
	HasQuote  bool     `json:"quote_created"`
}

func (g *ReplyGenerator) systemPrompt(s intake.Snapshot) string {
	ctxJSON, _ := json.MarshalIndent(promptContext{
		Name:      s.Name,
		Email:     s.Email,
		Company:   s.Company,
		Services:  s.Services,
		Budget:    s.Budget,
		Timeline:  s.Timeline,
		Confirmed: s.Confirmed,
		HasQuote:  s.QuoteID != "",
	}, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s AI Assistant, a helpful and professional chatbot for a digital marketing and design agency.\n\n", g.brand)
	b.WriteString("Guidelines:\n")
	b.WriteString("1. Be conversational, friendly and concise.\n")
	b.WriteString("2. Collect the essentials for a quote: name, email and the service needed.\n")
	b.WriteString("3. Once those are known, ask whether a quote should be created.\n")
	b.WriteString("4. Never mention payment methods, deposits or bank details; quotes are for review only.\n")
	b.WriteString("5. The team follows up on WhatsApp after a quote is created.\n")
	b.WriteString("6. Do not claim that a quote has been created; the system adds that confirmation itself.\n\n")
	if len(g.services) > 0 {
		b.WriteString("Available services:\n")
		for _, l := range g.services {
			fmt.Fprintf(&b, "- %s (%s)\n", l.Name, l.PriceRange)
		}
		b.WriteString("\n")
	}
	b.WriteString("Current conversation context: ")
	b.Write(ctxJSON)
	return b.String()
}
