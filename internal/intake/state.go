package intake

import (
	"strings"

	"orbitx-go/internal/model"
)

// maxProjectNotes 限制累积的项目描述字节数，超出时丢弃最早的内容。
const maxProjectNotes = 2000

// Snapshot 是会话状态在某一时刻的只读副本，供就绪判断使用。
type Snapshot struct {
	Name      string
	Email     string
	Phone     string
	Company   string
	Budget    string
	Timeline  string
	Notes     string
	Services  []string
	Confirmed bool
	QuoteID   string
}

// SnapshotOf 复制会话的当前状态。
func SnapshotOf(c *model.Conversation) Snapshot {
	s := Snapshot{
		Name:      c.UserName,
		Email:     c.UserEmail,
		Phone:     c.UserPhone,
		Company:   c.UserCompany,
		Budget:    c.Budget,
		Timeline:  c.Timeline,
		Notes:     c.ProjectNotes,
		Services:  append([]string(nil), c.Services...),
		Confirmed: c.Confirmed,
	}
	if c.QuoteRequestID != nil {
		s.QuoteID = *c.QuoteRequestID
	}
	return s
}

// HasRequired 判断姓名、邮箱和至少一个服务类别是否都已具备。
func (s Snapshot) HasRequired() bool {
	return s.Name != "" && s.Email != "" && len(s.Services) > 0
}

// Turn 汇总一次用户输入经规则引擎处理后的全部信号。
type Turn struct {
	Text            string
	Extraction      Extraction
	Intent          Intent
	UserInfo        *model.UserInfo
	HistoryServices []string
}

// Apply 将本轮信号合并进会话。
// 姓名、邮箱、电话、公司等字段先写者胜：已有值永不被覆盖。
// 服务类别取并集；确认标志只有在合并后的必填信息齐全时才会被置位，且一旦置位不再复位。
func Apply(c *model.Conversation, t Turn) {
	if info := t.UserInfo; info != nil {
		setIfEmpty(&c.UserName, info.Name, model.MaxNameLen)
		setIfEmpty(&c.UserEmail, info.Email, model.MaxEmailLen)
		setIfEmpty(&c.UserPhone, info.Phone, model.MaxPhoneLen)
		setIfEmpty(&c.UserCompany, info.Company, model.MaxCompanyLen)
		setIfEmpty(&c.SessionID, info.SessionID, model.MaxSessionIDLen)
	}

	ex := t.Extraction
	setIfEmpty(&c.UserName, ex.Name, model.MaxNameLen)
	setIfEmpty(&c.UserEmail, ex.Email, model.MaxEmailLen)
	setIfEmpty(&c.UserPhone, ex.Phone, model.MaxPhoneLen)
	setIfEmpty(&c.UserCompany, ex.Company, model.MaxCompanyLen)
	setIfEmpty(&c.Budget, ex.Budget, model.MaxBudgetLen)
	setIfEmpty(&c.Timeline, ex.Timeline, model.MaxTimelineLen)

	c.Services = UnionServices(c.Services, t.HistoryServices, t.Intent.Services)
	c.LastIntent = t.Intent.Label
	if t.Intent.Label != IntentGeneral {
		c.ProjectNotes = appendNote(c.ProjectNotes, strings.TrimSpace(t.Text))
	}

	if t.Intent.Confirmed && SnapshotOf(c).HasRequired() {
		c.Confirmed = true
	}
	c.SchemaVersion = model.ConversationSchemaVersion
}

// setIfEmpty 只在字段为空时写入，写入值按列宽截断。
func setIfEmpty(dst *string, v string, limit int) {
	v = strings.TrimSpace(v)
	if *dst == "" && v != "" {
		*dst = clamp(v, limit)
	}
}

func appendNote(notes, text string) string {
	if text == "" {
		return notes
	}
	if notes != "" {
		notes += " | "
	}
	notes += text
	return tail(notes, maxProjectNotes)
}
