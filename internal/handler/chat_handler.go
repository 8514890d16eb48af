// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"orbitx-go/internal/middleware"
	"orbitx-go/internal/model"
	"orbitx-go/internal/service"
	"orbitx-go/pkg/log"
)

const (
	messageRequiredText = "Message is required"
	invalidPayloadText  = "Invalid request payload"
	conversationIDText  = "conversation_id is too long (max 64 characters)"
	wsReadLimit         = 16 << 10
	wsIdleTimeout       = 10 * time.Minute
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源，聊天窗口嵌在营销站点的多个域名下
		},
	}
)

// ChatHandler 负责报价助手的 HTTP 与 WebSocket 接口。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// MessageRequest 定义了发送消息 API 的请求体结构。
type MessageRequest struct {
	Message        string          `json:"message"`
	ConversationID string          `json:"conversation_id" binding:"max=64"`
	UserInfo       *model.UserInfo `json:"user_info"`
}

// SendMessage 处理一轮对话。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SendMessage: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": bindErrorMessage(err), "data": nil})
		return
	}

	result, err := h.chatService.ProcessMessage(c.Request.Context(), req.ConversationID, req.Message, req.UserInfo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": messageRequiredText, "data": nil})
			return
		case errors.Is(err, service.ErrConversationIDTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": conversationIDText, "data": nil})
			return
		}
		log.Errorf("SendMessage: Failed to process message, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": middleware.ApologyMessage,
			"data":    gin.H{"success": false, "bot_response": middleware.ApologyMessage},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// ListServices 返回服务目录。
func (h *ChatHandler) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.chatService.Services()})
}

// Handle 处理一个 WebSocket 连接：每个文本帧是一轮对话，回复一帧 TurnResult。
// 同一连接上的后续消息沿用第一轮得到的会话 ID。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	conversationID := c.Query("conversation_id")
	log.Infof("WebSocket 连接已建立, conversation: %s", conversationID)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var req MessageRequest
		if err := json.Unmarshal(message, &req); err != nil {
			// 非 JSON 帧按纯文本消息处理
			req = MessageRequest{Message: string(message)}
		}
		if req.ConversationID == "" {
			req.ConversationID = conversationID
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			if writeErr := writeJSON(conn, gin.H{"success": false, "error": bindErrorMessage(err)}); writeErr != nil {
				return
			}
			continue
		}

		result, err := h.safeTurn(c, req)
		if err != nil {
			if writeErr := writeJSON(conn, gin.H{"success": false, "error": err.Error()}); writeErr != nil {
				return
			}
			continue
		}
		conversationID = result.ConversationID
		if err := writeJSON(conn, result); err != nil {
			log.Warnf("写入 WebSocket 响应失败: %v", err)
			return
		}
	}
}

// safeTurn 执行一轮对话，把 panic 和内部错误转换为对用户友好的错误信息。
func (h *ChatHandler) safeTurn(c *gin.Context, req MessageRequest) (result *model.TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("WebSocket 对话处理发生 panic", "panic", r)
			result, err = nil, errors.New(middleware.ApologyMessage)
		}
	}()
	result, err = h.chatService.ProcessMessage(c.Request.Context(), req.ConversationID, req.Message, req.UserInfo)
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return nil, errors.New(messageRequiredText)
	case errors.Is(err, service.ErrConversationIDTooLong):
		return nil, errors.New(conversationIDText)
	case err != nil:
		log.Errorf("WebSocket 对话处理失败: %v", err)
		return nil, errors.New(middleware.ApologyMessage)
	}
	return result, nil
}

// bindErrorMessage 把校验错误转换为面向用户的提示。
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "email":
				return "Invalid email address"
			case "max":
				return fmt.Sprintf("%s is too long (max %s characters)", fieldLabel(fe.Field()), fe.Param())
			}
		}
	}
	return invalidPayloadText
}

// fieldLabel 把结构体字段名转换为请求体中的 JSON 字段名。
func fieldLabel(field string) string {
	switch field {
	case "ConversationID":
		return "conversation_id"
	case "SessionID":
		return "session_id"
	}
	return strings.ToLower(field)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
