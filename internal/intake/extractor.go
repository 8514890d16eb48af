// Package intake 实现报价咨询对话的规则引擎：实体抽取、意图分类、会话状态合并与报价就绪判断。
// 包内全部是纯函数，不做任何 I/O。
package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Extraction 是从单条消息中抽取出的实体，缺失的信号保持为空字符串。
type Extraction struct {
	Name     string
	Email    string
	Phone    string
	Company  string
	Budget   string
	Timeline string
}

var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// 10 位号码，可带 +国家码，数字间允许单个空格或连字符；前后不能紧挨其他数字。
	phoneRE = regexp.MustCompile(`(?:^|[^\d+])((?:\+\d{1,3}[\s-]?)?\d(?:[\s-]?\d){9})(?:$|[^\d])`)

	// 按顺序尝试，作用于小写后的消息。
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`my name is\s+([a-z\s]+)`),
		regexp.MustCompile(`\bi am\s+([a-z\s]+)`),
		regexp.MustCompile(`\bi['’]m\s+([a-z\s]+)`),
		regexp.MustCompile(`name:\s*([a-z\s]+)`),
		regexp.MustCompile(`call me\s+([a-z\s]+)`),
	}

	companyRE    = regexp.MustCompile(`(?i)\b(?:my company is|company name is|company:)\s*([A-Za-z0-9&' -]{2,60})`)
	budgetRE     = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr|\$)\s*(\d(?:[\d,]*\d)?(?:\.\d+)?)\s*(k|thousand|lakhs?)?\b`)
	budgetUnitRE = regexp.MustCompile(`(?i)\b(\d(?:[\d,]*\d)?(?:\.\d+)?)\s*(k|thousand|lakhs?)\b`)
	urgentRE     = regexp.MustCompile(`(?i)\b(?:urgent|urgently|asap|as soon as possible)\b`)
	timelineRE   = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(day|week|month)s?\b`)
)

const maxNameTokens = 3

// nonNameWords 中的词出现时，候选文本不会被当作姓名。
var nonNameWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yes": {}, "no": {}, "ok": {}, "okay": {}, "sure": {},
	"thanks": {}, "thank": {}, "please": {}, "interested": {}, "looking": {}, "here": {},
	"ready": {}, "fine": {}, "good": {}, "not": {}, "the": {}, "a": {}, "an": {}, "in": {},
	"for": {}, "to": {}, "and": {}, "need": {}, "want": {}, "logo": {}, "website": {},
	"quote": {}, "proceed": {}, "confirm": {}, "again": {}, "on": {}, "at": {}, "me": {},
	"my": {}, "is": {},
}

func init() {
	// 服务关键词（如 "branding"、"social media"）本身不是姓名
	for _, cat := range ServiceCategories {
		for _, kw := range cat.Keywords {
			for _, w := range strings.Fields(kw) {
				nonNameWords[w] = struct{}{}
			}
		}
	}
}

// Extract 从一条消息中抽取姓名、邮箱、电话以及公司、预算和工期等补充信息。
func Extract(text string) Extraction {
	var ex Extraction
	if strings.TrimSpace(text) == "" {
		return ex
	}

	ex.Email = emailRE.FindString(text)
	if m := phoneRE.FindStringSubmatch(text); m != nil {
		ex.Phone = strings.TrimSpace(m[1])
	}
	ex.Name = extractName(text)
	ex.Company = extractCompany(text)
	ex.Budget = extractBudget(text)
	ex.Timeline = extractTimeline(text)
	return ex
}

func extractName(text string) string {
	lower := strings.ToLower(text)
	for _, p := range namePatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if tokens := strings.Fields(m[1]); acceptableName(tokens) {
			return titleCase(tokens)
		}
	}

	// 机器人刚问过“你叫什么”时，用户往往只回一个名字。
	tokens := strings.Fields(text)
	if acceptableName(tokens) {
		return titleCase(tokens)
	}
	return ""
}

func acceptableName(tokens []string) bool {
	if len(tokens) == 0 || len(tokens) > maxNameTokens {
		return false
	}
	for _, t := range tokens {
		for _, r := range t {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		if _, stop := nonNameWords[strings.ToLower(t)]; stop {
			return false
		}
	}
	return true
}

func titleCase(tokens []string) string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		runes := []rune(strings.ToLower(t))
		runes[0] = unicode.ToUpper(runes[0])
		out[i] = string(runes)
	}
	return strings.Join(out, " ")
}

func extractCompany(text string) string {
	m := companyRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	company := strings.TrimSpace(m[1])
	// “my company is Acme and we need…” 只取连接词之前的部分
	if i := strings.Index(strings.ToLower(company), " and "); i > 0 {
		company = company[:i]
	}
	return strings.TrimSpace(company)
}

func extractBudget(text string) string {
	if m := budgetRE.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	if m := budgetUnitRE.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

func extractTimeline(text string) string {
	if urgentRE.MatchString(text) {
		return "ASAP"
	}
	m := timelineRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return ""
	}
	unit := strings.ToLower(m[2])
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}
