package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orbitx-go/internal/middleware"
	"orbitx-go/internal/service"
	"orbitx-go/pkg/token"
)

// Services 汇总了路由所需的业务服务。
type Services struct {
	Chat  service.ChatService
	Quote service.QuoteService
	Admin service.AdminService
}

// NewRouter 创建 gin 引擎并注册全部路由。
func NewRouter(svc Services, jwtManager *token.JWTManager) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "ok", "data": nil})
	})

	chatHandler := NewChatHandler(svc.Chat)
	conversationHandler := NewConversationHandler(svc.Chat, svc.Admin)
	authHandler := NewAuthHandler(svc.Admin)
	adminHandler := NewAdminHandler(svc.Quote)

	api := r.Group("/api")
	{
		// 聊天窗口使用的公开接口
		chatbot := api.Group("/chatbot")
		{
			chatbot.POST("/message", chatHandler.SendMessage)
			chatbot.GET("/history/:id", conversationHandler.GetHistory)
			chatbot.GET("/services", chatHandler.ListServices)
			chatbot.GET("/ws", chatHandler.Handle)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/login", authHandler.Login)
			admin.POST("/refreshToken", authHandler.RefreshToken)

			// 需要同时通过认证和管理员授权两个中间件
			authed := admin.Group("")
			authed.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
			{
				authed.GET("/quotes", adminHandler.ListQuotes)
				authed.GET("/quotes/:id", adminHandler.GetQuote)
				authed.PUT("/quotes/:id/status", adminHandler.UpdateQuoteStatus)
				authed.GET("/quotes/:id/whatsapp", adminHandler.GetQuoteWhatsAppLink)
				authed.GET("/conversations/:id", conversationHandler.GetConversation)
			}
		}
	}
	return r
}
