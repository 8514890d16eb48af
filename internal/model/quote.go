package model

import "time"

// 报价单状态
const (
	QuoteStatusPending   = "pending"
	QuoteStatusReviewing = "reviewing"
	QuoteStatusSent      = "sent"
	QuoteStatusAccepted  = "accepted"
	QuoteStatusRejected  = "rejected"
)

// QuoteSourceChatbot 标记由对话助手创建的报价单。
const QuoteSourceChatbot = "chatbot"

// QuoteRequest 定义了 quote_requests 表的 ORM 模型。
type QuoteRequest struct {
	ID                     string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ClientName             string    `gorm:"type:varchar(100);not null" json:"client_name"`
	Email                  string    `gorm:"type:varchar(120);not null" json:"email"`
	Phone                  string    `gorm:"type:varchar(30)" json:"phone"`
	CompanyName            string    `gorm:"type:varchar(100)" json:"company_name"`
	ServicesRequested      string    `gorm:"type:text" json:"services_requested"`
	ProjectDescription     string    `gorm:"type:text;not null" json:"project_description"`
	BudgetRange            string    `gorm:"type:varchar(50)" json:"budget_range"`
	Timeline               string    `gorm:"type:varchar(50)" json:"timeline"`
	AdditionalRequirements string    `gorm:"type:text" json:"additional_requirements"`
	Status                 string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Source                 string    `gorm:"type:varchar(20)" json:"source"`
	ConversationID         string    `gorm:"type:varchar(64);index" json:"conversation_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (QuoteRequest) TableName() string {
	return "quote_requests"
}

// ValidQuoteStatus 判断状态值是否合法。
func ValidQuoteStatus(status string) bool {
	switch status {
	case QuoteStatusPending, QuoteStatusReviewing, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRejected:
		return true
	}
	return false
}

// QuoteAnalysis 是通知前对报价单做的优先级和价值评估。
type QuoteAnalysis struct {
	Priority       int    `json:"priority"`
	EstimatedValue string `json:"estimated_value"`
	Strategy       string `json:"strategy"`
	Source         string `json:"source"`
	ConversationID string `json:"conversation_id,omitempty"`
	BriefURL       string `json:"brief_url,omitempty"`
}

// QuoteListItem 是后台报价列表项。
type QuoteListItem struct {
	ID                string    `json:"id"`
	ClientName        string    `json:"client_name"`
	Email             string    `json:"email"`
	ServicesRequested string    `json:"services_requested"`
	Status            string    `json:"status"`
	CreatedAt         LocalTime `json:"created_at"`
}

// QuoteListResponse 定义了报价列表 API 的分页响应结构。
type QuoteListResponse struct {
	Content       []QuoteListItem `json:"content"`
	TotalElements int64           `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
	Size          int             `json:"size"`
	Number        int             `json:"number"`
}
