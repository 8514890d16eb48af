package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orbitx-go/pkg/log"
)

// ApologyMessage 是请求处理过程中发生 panic 时返回给用户的文案。
const ApologyMessage = "I apologize, but I encountered an error. Please try again or contact us directly."

// Recovery 捕获处理链中的 panic，记录日志并返回统一的道歉响应，不会把堆栈暴露给调用方。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("请求处理发生 panic", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": ApologyMessage,
			"data": gin.H{
				"success":      false,
				"bot_response": ApologyMessage,
			},
		})
	})
}
