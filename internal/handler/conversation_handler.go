package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orbitx-go/internal/service"
	"orbitx-go/pkg/log"
)

// ConversationHandler 处理与会话记录相关的 API 请求。
type ConversationHandler struct {
	chatService  service.ChatService
	adminService service.AdminService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(chatService service.ChatService, adminService service.AdminService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService, adminService: adminService}
}

// GetHistory 返回会话的消息历史，未知会话返回空列表。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	history, err := h.chatService.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Errorf("GetHistory: Failed to load history, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve conversation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"conversation_id": c.Param("id"), "messages": history},
	})
}

// GetConversation 返回会话状态及其全部消息，仅管理员可用。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	detail, err := h.adminService.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err, "会话未找到", "获取会话失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": detail})
}
