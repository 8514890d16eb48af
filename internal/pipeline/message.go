package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"orbitx-go/internal/model"
	"orbitx-go/pkg/phone"
)

const smsDescriptionLen = 100

// PriorityLabel 把 1-10 的优先级映射为通知中的标签。
func PriorityLabel(priority int) string {
	switch {
	case priority >= 8:
		return "HIGH PRIORITY"
	case priority >= 6:
		return "MEDIUM PRIORITY"
	default:
		return "STANDARD"
	}
}

// SMSMessage 生成发给团队的短信正文。
func SMSMessage(brand string, q *model.QuoteRequest, a model.QuoteAnalysis) string {
	desc := q.ProjectDescription
	if r := []rune(desc); len(r) > smsDescriptionLen {
		desc = string(r[:smsDescriptionLen])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "NEW QUOTE - %s (%s)\n\n", brand, PriorityLabel(a.Priority))
	fmt.Fprintf(&b, "Client: %s\n", q.ClientName)
	fmt.Fprintf(&b, "Email: %s\n", q.Email)
	fmt.Fprintf(&b, "Service: %s\n", q.ServicesRequested)
	fmt.Fprintf(&b, "Budget: %s\n\n", orDefault(q.BudgetRange, "Not specified"))
	b.WriteString("AI Analysis:\n")
	fmt.Fprintf(&b, "Priority: %d/10\n", a.Priority)
	fmt.Fprintf(&b, "Est. Value: %s\n\n", a.EstimatedValue)
	fmt.Fprintf(&b, "Description: %s...\n\n", desc)
	fmt.Fprintf(&b, "Action: Send quote to %s", q.Email)
	return b.String()
}

// RichMessage 生成包含完整信息的通知正文，用于 WhatsApp 链接和邮件。
func RichMessage(brand string, q *model.QuoteRequest, a model.QuoteAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] NEW QUOTE REQUEST - %s\n\n", PriorityLabel(a.Priority), brand)
	fmt.Fprintf(&b, "Client: %s\n", q.ClientName)
	fmt.Fprintf(&b, "Email: %s\n", q.Email)
	fmt.Fprintf(&b, "Phone: %s\n", orDefault(q.Phone, "Not provided"))
	fmt.Fprintf(&b, "Company: %s\n\n", orDefault(q.CompanyName, "Not provided"))
	fmt.Fprintf(&b, "Service: %s\n", q.ServicesRequested)
	fmt.Fprintf(&b, "Budget: %s\n", orDefault(q.BudgetRange, "Not specified"))
	fmt.Fprintf(&b, "Timeline: %s\n\n", orDefault(q.Timeline, "Not specified"))
	fmt.Fprintf(&b, "Project Description:\n%s\n\n", q.ProjectDescription)
	b.WriteString("AI Analysis:\n")
	fmt.Fprintf(&b, "- Priority: %d/10\n", a.Priority)
	fmt.Fprintf(&b, "- Est. Value: %s\n", a.EstimatedValue)
	fmt.Fprintf(&b, "- Strategy: %s\n\n", a.Strategy)
	if a.BriefURL != "" {
		fmt.Fprintf(&b, "Brief: %s\n\n", a.BriefURL)
	}
	fmt.Fprintf(&b, "Action Required: Prepare and send detailed quote to %s", q.Email)
	if q.Source == model.QuoteSourceChatbot {
		b.WriteString("\n\n[AI Chatbot] Source: AI Chatbot Conversation")
	}
	return b.String()
}

// WhatsAppLink 生成预填消息的 wa.me 链接，号码只保留数字。
func WhatsAppLink(number, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone.Digits(number), text)
}

// Brief 生成归档到对象存储的 Markdown 摘要。
func Brief(q *model.QuoteRequest, a model.QuoteAnalysis) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Quote %s\n\n", q.ID)
	fmt.Fprintf(&b, "- **Client:** %s\n", q.ClientName)
	fmt.Fprintf(&b, "- **Email:** %s\n", q.Email)
	fmt.Fprintf(&b, "- **Phone:** %s\n", orDefault(q.Phone, "Not provided"))
	fmt.Fprintf(&b, "- **Company:** %s\n", orDefault(q.CompanyName, "Not provided"))
	fmt.Fprintf(&b, "- **Services:** %s\n", q.ServicesRequested)
	fmt.Fprintf(&b, "- **Budget:** %s\n", q.BudgetRange)
	fmt.Fprintf(&b, "- **Timeline:** %s\n", q.Timeline)
	fmt.Fprintf(&b, "- **Status:** %s\n", q.Status)
	fmt.Fprintf(&b, "- **Created:** %s\n\n", model.LocalTime(q.CreatedAt))
	fmt.Fprintf(&b, "## Analysis\n\nPriority %d/10 (%s), estimated value %s. %s.\n\n",
		a.Priority, PriorityLabel(a.Priority), a.EstimatedValue, a.Strategy)
	fmt.Fprintf(&b, "## Project description\n\n%s\n", q.ProjectDescription)
	if q.AdditionalRequirements != "" {
		fmt.Fprintf(&b, "\n## Additional requirements\n\n%s\n", q.AdditionalRequirements)
	}
	return []byte(b.String())
}
