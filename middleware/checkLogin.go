package middleware

import (
	"github.com/gin-gonic/gin"
	"net/http"
)

// 檢查是否有登入，沒有則中止請求
func CheckLoginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := CurrentUserID(c); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "尚未登入",
				"error":   "unauthorized",
			})
			return
		}

		c.Next()
	}
}
