package middleware

import (
	"dentalshop/jwt"
	"dentalshop/logger"
	"dentalshop/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"strings"
)

const (
	ContextToken   = "Token"
	ContextTokenID = "TokenID"
	ContextUserID  = "UserID"
	ContextRole    = "Role"
)

// 若有合法Token則寫入使用者資訊，沒有也繼續處理請求
func AuthMiddleware(db *gorm.DB, manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if token == "" {
			c.Next()
			return
		}

		//如Token不合法或錯誤則視為未登入
		claims, loginToken, err := manager.VerifyToken(token, db)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("無法驗證Token", "error", err)
			c.Next()
			return
		}

		//停權或已刪除的帳號視為未登入
		var user models.User
		err = db.Select("id", "role", "status").First(&user, claims.UserID).Error
		if err != nil || user.Status != models.UserStatusActive {
			c.Next()
			return
		}

		c.Header("Authorization", "Bearer "+token)
		c.Set(ContextToken, token)
		c.Set(ContextTokenID, loginToken.ID)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Next()
	}
}

func CurrentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}

func CurrentTokenID(c *gin.Context) uint {
	return c.GetUint(ContextTokenID)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextRole) == models.RoleAdmin
}
