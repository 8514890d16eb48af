package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"orbitx-go/internal/middleware"
	"orbitx-go/internal/repository"
	"orbitx-go/internal/service"
	"orbitx-go/pkg/log"
)

// AdminHandler 负责处理后台报价单管理的 API 请求。
type AdminHandler struct {
	quoteService service.QuoteService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(quoteService service.QuoteService) *AdminHandler {
	return &AdminHandler{quoteService: quoteService}
}

// ListQuotes 处理分页获取报价单列表的请求，可按状态过滤。
func (h *AdminHandler) ListQuotes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	list, err := h.quoteService.ListQuotes(c.Request.Context(), c.Query("status"), page, size)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的报价单状态", "data": nil})
			return
		}
		log.Error("ListQuotes: Failed to list quotes", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取报价单列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": list})
}

// GetQuote 返回单张报价单。
func (h *AdminHandler) GetQuote(c *gin.Context) {
	quote, err := h.quoteService.GetQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err, "报价单未找到", "获取报价单失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": quote})
}

// UpdateQuoteStatusRequest 定义了更新报价单状态 API 的请求体结构。
type UpdateQuoteStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateQuoteStatus 处理更新报价单状态的请求。
func (h *AdminHandler) UpdateQuoteStatus(c *gin.Context) {
	var req UpdateQuoteStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("UpdateQuoteStatus: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	id := c.Param("id")
	if err := h.quoteService.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的报价单状态", "data": nil})
			return
		}
		respondLookupError(c, err, "报价单未找到", "更新报价单状态失败")
		return
	}

	log.Infof("Admin user '%s' set quote %s to '%s'", middleware.ClaimsFrom(c).Username, id, req.Status)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "状态更新成功", "data": nil})
}

// GetQuoteWhatsAppLink 返回预填报价详情的 WhatsApp 链接。
func (h *AdminHandler) GetQuoteWhatsAppLink(c *gin.Context) {
	link, err := h.quoteService.WhatsAppLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err, "报价单未找到", "生成 WhatsApp 链接失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"url": link}})
}

func respondLookupError(c *gin.Context, err error, notFound, failed string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": notFound, "data": nil})
		return
	}
	log.Errorf("%s: %v", failed, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": failed, "data": nil})
}
