package middleware

import (
	"github.com/gin-gonic/gin"
	"net/http"
)

// 檢查是否有admin權限，沒有則中止請求
func CheckAdminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := CurrentUserID(c); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "尚未登入",
				"error":   "unauthorized",
			})
			return
		}
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "沒有權限",
				"error":   "forbidden",
			})
			return
		}

		c.Next()
	}
}
