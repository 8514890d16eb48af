package intake

import (
	"regexp"
	"strings"
)

// 意图标签
const (
	IntentQuoteRequest   = "quote_request"
	IntentServiceInquiry = "service_inquiry"
	IntentGeneral        = "general"
)

// Intent 是对单条消息的粗粒度意图判断。
type Intent struct {
	Label          string
	Confidence     float64
	Services       []string
	QuoteRequested bool
	Confirmed      bool
}

// ServiceCategory 是服务类别及其触发关键词。
type ServiceCategory struct {
	Name     string
	Keywords []string
}

// ServiceCategories 的顺序即服务输出顺序。
var ServiceCategories = []ServiceCategory{
	{Name: "logo", Keywords: []string{"logo", "brand mark", "company logo"}},
	{Name: "website", Keywords: []string{"website", "web design", "site", "web development"}},
	{Name: "social-media", Keywords: []string{"social media", "instagram", "facebook", "twitter", "social"}},
	{Name: "branding", Keywords: []string{"branding", "brand identity", "brand package"}},
	{Name: "packaging", Keywords: []string{"packaging", "product packaging", "box design"}},
	{Name: "print", Keywords: []string{"print", "brochure", "flyer", "poster", "business card"}},
}

var (
	quoteRE   = regexp.MustCompile(`(?i)\b(?:quote|price|pricing|cost|how much|estimate|proposal|budget|charge|fee|rate)s?\b`)
	confirmRE = regexp.MustCompile(`(?i)\b(?:yes|create (?:the |a )?quote|generate (?:the |a )?quote|proceed|go ahead|confirm|approve|finali[sz]e)\b`)
)

// Classify 给消息打上意图标签和置信度，并返回识别到的服务类别。
func Classify(text string) Intent {
	in := Intent{
		Label:          IntentGeneral,
		Confidence:     0.5,
		Services:       DetectServices(text),
		QuoteRequested: quoteRE.MatchString(text),
		Confirmed:      HasConfirmation(text),
	}
	switch {
	case in.QuoteRequested:
		in.Label, in.Confidence = IntentQuoteRequest, 0.9
	case len(in.Services) > 0:
		in.Label, in.Confidence = IntentServiceInquiry, 0.8
	}
	return in
}

// DetectServices 以子串方式扫描全部服务类别，返回所有命中的类别。
func DetectServices(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, c := range ServiceCategories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				found = append(found, c.Name)
				break
			}
		}
	}
	return found
}

// HasConfirmation 判断消息中是否含有确认创建报价的短语。
func HasConfirmation(text string) bool {
	return confirmRE.MatchString(text)
}

// UnionServices 合并多组服务类别，结果按类别表顺序排列且无重复。
// 不在类别表中的值保留在末尾，保证集合只增不减。
func UnionServices(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, s := range set {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for _, c := range ServiceCategories {
		if _, ok := seen[c.Name]; ok {
			out = append(out, c.Name)
			delete(seen, c.Name)
		}
	}
	for _, set := range sets {
		for _, s := range set {
			if _, ok := seen[s]; ok {
				out = append(out, s)
				delete(seen, s)
			}
		}
	}
	return out
}
