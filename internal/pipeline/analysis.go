package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"orbitx-go/internal/model"
	"orbitx-go/pkg/llm"
	"orbitx-go/pkg/log"
)

// 未配置模型或分析失败时使用的默认评估。
const (
	DefaultPriority       = 5
	DefaultEstimatedValue = "Rs 5,000-15,000"
	DefaultStrategy       = "Standard response"
	AIStrategy            = "AI-analyzed response"

	analysisMaxTokens      = 100
	analysisDescriptionLen = 200
)

var (
	priorityLineRE = regexp.MustCompile(`(?i)priority\s*:\s*(\d{1,2})`)
	valueLineRE    = regexp.MustCompile(`(?i)value\s*:\s*(.+)`)
)

// Analyzer 使用大模型评估报价单的优先级和预估价值。
type Analyzer struct {
	client llm.Client
	model  string
}

// NewAnalyzer 创建分析器。client 为 nil 时始终返回默认评估。
func NewAnalyzer(client llm.Client, model string) *Analyzer {
	return &Analyzer{client: client, model: model}
}

// Analyze 返回报价单的评估结果，任何失败都退回默认值。
func (a *Analyzer) Analyze(ctx context.Context, q *model.QuoteRequest) model.QuoteAnalysis {
	analysis := model.QuoteAnalysis{
		Priority:       DefaultPriority,
		EstimatedValue: DefaultEstimatedValue,
		Strategy:       DefaultStrategy,
		Source:         q.Source,
		ConversationID: q.ConversationID,
	}
	if a == nil || a.client == nil {
		return analysis
	}

	reply, err := a.client.Chat(ctx, []llm.Message{{Role: "user", Content: analysisPrompt(q)}}, &llm.GenerationParams{
		Model:     a.model,
		MaxTokens: llm.Int(analysisMaxTokens),
	})
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			log.Warnf("[Analyzer] 报价分析失败, 使用默认评估, quote=%s, err=%v", q.ID, err)
		}
		return analysis
	}

	priority, value := ParseAnalysis(reply)
	analysis.Priority = priority
	analysis.EstimatedValue = value
	analysis.Strategy = AIStrategy
	return analysis
}

func analysisPrompt(q *model.QuoteRequest) string {
	desc := q.ProjectDescription
	if r := []rune(desc); len(r) > analysisDescriptionLen {
		desc = string(r[:analysisDescriptionLen])
	}
	var b strings.Builder
	b.WriteString("Analyze this design quote briefly:\n")
	fmt.Fprintf(&b, "Client: %s\n", q.ClientName)
	fmt.Fprintf(&b, "Service: %s\n", q.ServicesRequested)
	fmt.Fprintf(&b, "Budget: %s\n", orDefault(q.BudgetRange, "Not specified"))
	fmt.Fprintf(&b, "Description: %s\n\n", desc)
	b.WriteString("Provide priority (1-10) and estimated value in rupees in this format:\n")
	b.WriteString("Priority: X/10\n")
	b.WriteString("Value: Rs X,XXX-X,XXX")
	return b.String()
}

// ParseAnalysis 从模型回复中解析 "Priority: X/10" 和 "Value: ..." 两行。
// 解析不到的部分保留默认值，优先级被限制在 1 到 10 之间。
func ParseAnalysis(reply string) (int, string) {
	priority, value := DefaultPriority, DefaultEstimatedValue
	for _, line := range strings.Split(reply, "\n") {
		if m := priorityLineRE.FindStringSubmatch(line); m != nil {
			if p, err := strconv.Atoi(m[1]); err == nil {
				priority = min(max(p, 1), 10)
			}
			continue
		}
		if m := valueLineRE.FindStringSubmatch(line); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				value = v
			}
		}
	}
	return priority, value
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
