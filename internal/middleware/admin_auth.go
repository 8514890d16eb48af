package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orbitx-go/internal/model"
)

// AdminAuthMiddleware 检查 token 中的角色是否为管理员。
// 此中间件必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			// AuthMiddleware 未能写入 claims，属于路由装配错误
			abort(c, http.StatusInternalServerError, "无法获取用户信息")
			return
		}
		if claims.Role != model.RoleAdmin {
			abort(c, http.StatusForbidden, "权限不足，需要管理员权限")
			return
		}
		c.Next()
	}
}
