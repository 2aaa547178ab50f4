package handlers

import (
	"dentalshop/mail"
	"dentalshop/models"
	"fmt"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
	"strings"
)

type contactRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Email   string `json:"email" binding:"required,email,max=255"`
	Phone   string `json:"phone" binding:"max=50"`
	Subject string `json:"subject" binding:"required,max=255"`
	Message string `json:"message" binding:"required,min=10,max=5000"`
}

// 送出聯絡表單，設定商店信箱時通知管理員
func CreateContactMessageHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	message := models.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   normalizeEmail(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
		Status:  models.MessageStatusUnread,
	}
	if err := db.Create(&message).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "儲存聯絡訊息失敗", err)
		return
	}

	if settings, err := loadSettings(db); err == nil && settings[models.SettingStoreEmail] != "" {
		msg, err := mail.ContactNotificationMessage(settings[models.SettingStoreEmail], mail.ContactData{
			Name:    message.Name,
			Email:   message.Email,
			Phone:   message.Phone,
			Subject: message.Subject,
			Message: message.Message,
		})
		svc.sendMail(c.Request.Context(), msg, err)
	}

	respondData(c, http.StatusCreated, "已收到您的訊息", message)
}

// 查詢聯絡訊息列表
func GetMessageListHandler(c *gin.Context, db *gorm.DB) {
	pagination, ok := parsePagination(c)
	if !ok {
		return
	}

	query := db.Model(&models.ContactMessage{})
	if status := c.Query("status"); status != "" {
		if !models.IsValidMessageStatus(status) {
			respondError(c, http.StatusBadRequest, "訊息狀態錯誤", fmt.Errorf("unknown status %q", status))
			return
		}
		query = query.Where("status = ?", status)
	}
	if q := c.Query("q"); strings.TrimSpace(q) != "" {
		pattern := likePattern(q)
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(subject) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢聯絡訊息失敗", err)
		return
	}

	messages := []models.ContactMessage{}
	err := query.
		Order("created_at DESC, id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&messages).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢聯絡訊息失敗", err)
		return
	}

	respondList(c, "成功查詢聯絡訊息", messages, pagination.Meta(total))
}

func findMessage(c *gin.Context, db *gorm.DB) (models.ContactMessage, bool) {
	var message models.ContactMessage
	id, ok := parseIDParam(c, "id")
	if !ok {
		return message, false
	}
	if err := db.First(&message, id).Error; err != nil {
		respondDBError(c, "聯絡訊息不存在", err)
		return message, false
	}
	return message, true
}

// 查詢聯絡訊息，未讀訊息標記為已讀
func GetMessageDataHandler(c *gin.Context, db *gorm.DB) {
	message, ok := findMessage(c, db)
	if !ok {
		return
	}

	if message.Status == models.MessageStatusUnread {
		message.Status = models.MessageStatusRead
		if err := db.Model(&message).Update("status", message.Status).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "更新訊息狀態失敗", err)
			return
		}
	}

	respondData(c, http.StatusOK, "成功查詢聯絡訊息", message)
}

func UpdateMessageStatusHandler(c *gin.Context, db *gorm.DB) {
	var req struct {
		Status string `json:"status" binding:"required,oneof=unread read replied archived"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	message, ok := findMessage(c, db)
	if !ok {
		return
	}

	message.Status = req.Status
	if err := db.Model(&message).Update("status", message.Status).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "更新訊息狀態失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功更新訊息狀態", message)
}

func DeleteMessageHandler(c *gin.Context, db *gorm.DB) {
	message, ok := findMessage(c, db)
	if !ok {
		return
	}

	if err := db.Delete(&message).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "刪除聯絡訊息失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功刪除聯絡訊息", nil)
}
