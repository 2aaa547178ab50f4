package handlers

import (
	"dentalshop/middleware"
	"dentalshop/models"
	"dentalshop/utils"
	"errors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
	"strconv"
	"time"
)

type sessionInfo struct {
	ID        uint      `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

type securitySettings struct {
	SessionTimeoutHours int `json:"sessionTimeoutHours"`
	MaxLoginAttempts    int `json:"maxLoginAttempts"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type securitySettingsRequest struct {
	SessionTimeoutHours *int `json:"sessionTimeoutHours" binding:"omitempty,min=1,max=720"`
	MaxLoginAttempts    *int `json:"maxLoginAttempts" binding:"omitempty,min=1,max=20"`
}

func loadSecuritySettings(db *gorm.DB) (securitySettings, error) {
	settings, err := loadSettings(db)
	if err != nil {
		return securitySettings{}, err
	}
	return securitySettings{
		SessionTimeoutHours: settings.Int(models.SettingSessionTimeoutHours, 24),
		MaxLoginAttempts:    settings.Int(models.SettingMaxLoginAttempts, 5),
	}, nil
}

// 查詢帳號安全資訊: 最後登入時間、登入中的裝置與安全設定
func GetSecurityHandler(c *gin.Context, db *gorm.DB) {
	userID, _ := middleware.CurrentUserID(c)
	currentTokenID := middleware.CurrentTokenID(c)

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		respondDBError(c, "使用者不存在", err)
		return
	}

	var tokens []models.LoginToken
	err := db.
		Where("user_id = ? AND expiration_time > ?", userID, time.Now()).
		Order("created_at DESC").
		Find(&tokens).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢登入裝置失敗", err)
		return
	}

	sessions := make([]sessionInfo, 0, len(tokens))
	for _, token := range tokens {
		sessions = append(sessions, sessionInfo{
			ID:        token.ID,
			IP:        token.IP,
			UserAgent: token.UserAgent,
			CreatedAt: token.CreatedAt,
			ExpiresAt: token.ExpirationTime,
			Current:   token.ID == currentTokenID,
		})
	}

	settings, err := loadSecuritySettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢安全設定失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢安全資訊", gin.H{
		"lastLoginAt": user.LastLoginAt,
		"sessions":    sessions,
		"settings":    settings,
	})
}

// 變更密碼並登出其他裝置
func ChangePasswordHandler(c *gin.Context, db *gorm.DB) {
	userID, _ := middleware.CurrentUserID(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		respondDBError(c, "使用者不存在", err)
		return
	}
	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		respondError(c, http.StatusBadRequest, "目前密碼錯誤", errInvalidCredentials)
		return
	}
	if !utils.ValidatePassword(req.NewPassword) {
		respondDetails(c, "不合法的新密碼", []FieldError{{
			Field:   "newPassword",
			Message: "需為8-50字元，包含大小寫字母、數字與符號且不可有空白",
		}})
		return
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "無法生成Hashed密碼", err)
		return
	}

	var revoked int64
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hashedPassword).Error; err != nil {
			return err
		}
		result := tx.Unscoped().
			Where("user_id = ? AND id <> ?", user.ID, middleware.CurrentTokenID(c)).
			Delete(&models.LoginToken{})
		revoked = result.RowsAffected
		return result.Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "變更密碼失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功變更密碼", gin.H{"revokedSessions": revoked})
}

// 更新登入逾時與登入失敗次數上限
func UpdateSecuritySettingsHandler(c *gin.Context, db *gorm.DB) {
	var req securitySettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var settings []models.Setting
	if req.SessionTimeoutHours != nil {
		settings = append(settings, models.Setting{
			Key:   models.SettingSessionTimeoutHours,
			Value: strconv.Itoa(*req.SessionTimeoutHours),
			Group: models.SettingGroupSecurity,
		})
	}
	if req.MaxLoginAttempts != nil {
		settings = append(settings, models.Setting{
			Key:   models.SettingMaxLoginAttempts,
			Value: strconv.Itoa(*req.MaxLoginAttempts),
			Group: models.SettingGroupSecurity,
		})
	}

	if len(settings) > 0 {
		if err := db.Transaction(func(tx *gorm.DB) error { return upsertSettings(tx, settings) }); err != nil {
			respondError(c, http.StatusInternalServerError, "更新安全設定失敗", err)
			return
		}
	}

	current, err := loadSecuritySettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢安全設定失敗", err)
		return
	}
	respondData(c, http.StatusOK, "成功更新安全設定", current)
}

// 登出自己的其中一個裝置
func RevokeSessionHandler(c *gin.Context, db *gorm.DB) {
	userID, _ := middleware.CurrentUserID(c)
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result := db.Unscoped().Where("id = ? AND user_id = ?", sessionID, userID).Delete(&models.LoginToken{})
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "資料庫錯誤", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "找不到此登入裝置", errors.New("session not found"))
		return
	}

	respondData(c, http.StatusOK, "成功登出裝置", nil)
}
