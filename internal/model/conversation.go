// Package model 包含了应用的数据模型定义。
package model

import "time"

// ConversationSchemaVersion 是会话记录当前的结构版本，持久化时一并写入。
const ConversationSchemaVersion = 1

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// 会话字段的最大字符数，与表结构的列宽一致。
const (
	MaxConversationIDLen = 64
	MaxSessionIDLen      = 100
	MaxNameLen           = 100
	MaxEmailLen          = 120
	MaxPhoneLen          = 30
	MaxCompanyLen        = 100
	MaxBudgetLen         = 50
	MaxTimelineLen       = 50
)

// Conversation 代表一次与终端用户的报价咨询会话，累积用户信息、服务类别与确认状态。
type Conversation struct {
	ID            string   `gorm:"type:varchar(64);primaryKey" json:"id"`
	SessionID     string   `gorm:"type:varchar(100)" json:"session_id,omitempty"`
	UserName      string   `gorm:"type:varchar(100)" json:"user_name,omitempty"`
	UserEmail     string   `gorm:"type:varchar(120)" json:"user_email,omitempty"`
	UserPhone     string   `gorm:"type:varchar(30)" json:"user_phone,omitempty"`
	UserCompany   string   `gorm:"type:varchar(100)" json:"user_company,omitempty"`
	Services      []string `gorm:"type:text;serializer:json" json:"services"`
	Budget        string   `gorm:"type:varchar(50)" json:"budget,omitempty"`
	Timeline      string   `gorm:"type:varchar(50)" json:"timeline,omitempty"`
	ProjectNotes  string   `gorm:"type:text" json:"project_notes,omitempty"`
	LastIntent    string   `gorm:"type:varchar(30)" json:"last_intent,omitempty"`
	Confirmed     bool     `gorm:"not null;default:false" json:"quote_confirmed"`
	Status        string   `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	SchemaVersion int      `gorm:"not null;default:1" json:"schema_version"`
	// QuoteRequestID 只能通过条件更新从空值写入一次，普通保存不会触碰该列。
	QuoteRequestID *string   `gorm:"type:varchar(36);index" json:"quote_request_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "chat_conversations"
}

// HasQuote 判断会话是否已关联报价单。
func (c *Conversation) HasQuote() bool {
	return c.QuoteRequestID != nil && *c.QuoteRequestID != ""
}

// MessageMetadata 是附加在机器人消息上的结构化信息。
type MessageMetadata struct {
	Intent       string   `json:"intent,omitempty"`
	Services     []string `json:"services,omitempty"`
	QuoteCreated bool     `json:"quote_created"`
	QuoteID      string   `json:"quote_id,omitempty"`
}

// ChatMessage 是会话中的单条消息，创建后不可修改，按创建时间排序。
type ChatMessage struct {
	ID             uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string           `gorm:"type:varchar(64);index;not null" json:"conversation_id"`
	Sender         string           `gorm:"type:varchar(10);not null" json:"sender"` // "user" 或 "bot"
	Message        string           `gorm:"type:text;not null" json:"message"`
	MessageType    string           `gorm:"type:varchar(20);not null;default:'text'" json:"message_type"`
	Metadata       *MessageMetadata `gorm:"type:text;serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time        `gorm:"type:datetime(6);index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// UserInfo 是调用方随消息一起提交的显式用户信息。
type UserInfo struct {
	Name      string `json:"name" binding:"max=100"`
	Email     string `json:"email" binding:"omitempty,max=120,email"`
	Phone     string `json:"phone" binding:"max=30"`
	Company   string `json:"company" binding:"max=100"`
	SessionID string `json:"session_id" binding:"max=100"`
}

// TurnResult 是一次对话轮次处理完成后返回给调用方的结果。
type TurnResult struct {
	Success        bool     `json:"success"`
	BotResponse    string   `json:"bot_response"`
	ConversationID string   `json:"conversation_id"`
	Intent         string   `json:"intent"`
	Services       []string `json:"services"`
	QuoteCreated   bool     `json:"quote_created"`
	QuoteID        string   `json:"quote_id,omitempty"`
}

// HistoryEntry 是会话历史查询返回的单条记录。
type HistoryEntry struct {
	Sender    string           `json:"sender"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}
