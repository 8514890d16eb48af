package model

import "time"

// EsMessageDocument 定义了存储在 Elasticsearch 中的消息文档结构。
// 文档 ID 由写入方生成，排序依赖纳秒精度的 created_at。
type EsMessageDocument struct {
	ConversationID string           `json:"conversation_id"`
	Sender         string           `json:"sender"`
	Message        string           `json:"message"`
	MessageType    string           `json:"message_type"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ToChatMessage 转换为通用消息模型。
func (d EsMessageDocument) ToChatMessage() ChatMessage {
	return ChatMessage{
		ConversationID: d.ConversationID,
		Sender:         d.Sender,
		Message:        d.Message,
		MessageType:    d.MessageType,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
	}
}
