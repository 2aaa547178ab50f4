package handlers

import (
	"dentalshop/models"
	"fmt"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
	"time"
)

const (
	notificationWindow = 24 * time.Hour
	notificationLimit  = 20
)

type notificationItem struct {
	Key       string      `json:"key"`
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	CreatedAt time.Time   `json:"createdAt"`
	Data      interface{} `json:"data"`
}

type notificationCounts struct {
	PendingOrders    int64 `json:"pendingOrders"`
	UnreadMessages   int64 `json:"unreadMessages"`
	LowStockProducts int64 `json:"lowStockProducts"`
}

// 後台通知: 待處理訂單、未讀訊息與低庫存商品
func GetNotificationsHandler(c *gin.Context, db *gorm.DB) {
	now := time.Now()
	since := now.Add(-notificationWindow)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "since格式錯誤", fmt.Errorf("since must be RFC3339: %w", err))
			return
		}
		since = t
	}

	settings, err := loadSettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "讀取商店設定失敗", err)
		return
	}
	threshold := settings.IntMin(models.SettingLowStockThreshold, 5, 0)

	var counts notificationCounts
	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&counts.PendingOrders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢通知失敗", err)
		return
	}
	if err := db.Model(&models.ContactMessage{}).Where("status = ?", models.MessageStatusUnread).Count(&counts.UnreadMessages).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢通知失敗", err)
		return
	}
	if counts.LowStockProducts, err = lowStockCount(db, threshold); err != nil {
		respondError(c, http.StatusInternalServerError, "查詢通知失敗", err)
		return
	}

	var orders []models.Order
	err = db.
		Select("id", "order_number", "customer_name", "total", "status", "created_at").
		Where("created_at > ?", since).
		Order("created_at DESC, id DESC").
		Limit(notificationLimit).
		Find(&orders).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢通知失敗", err)
		return
	}

	var messages []models.ContactMessage
	err = db.
		Select("id", "name", "email", "subject", "status", "created_at").
		Where("created_at > ?", since).
		Order("created_at DESC, id DESC").
		Limit(notificationLimit).
		Find(&messages).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢通知失敗", err)
		return
	}

	var products []models.Product
	err = db.
		Select("id", "name", "sku", "stock_quantity", "updated_at").
		Where("active = ? AND stock_quantity <= ?", true, threshold).
		Order("stock_quantity ASC, id ASC").
		Limit(notificationLimit).
		Find(&products).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢通知失敗", err)
		return
	}

	orderItems := make([]notificationItem, 0, len(orders))
	for _, order := range orders {
		orderItems = append(orderItems, notificationItem{
			Key:       fmt.Sprintf("order-%d", order.ID),
			Type:      "order",
			Title:     fmt.Sprintf("新訂單 %s", order.OrderNumber),
			CreatedAt: order.CreatedAt,
			Data: gin.H{
				"id":           order.ID,
				"orderNumber":  order.OrderNumber,
				"customerName": order.CustomerName,
				"total":        order.Total,
				"status":       order.Status,
			},
		})
	}

	messageItems := make([]notificationItem, 0, len(messages))
	for _, message := range messages {
		messageItems = append(messageItems, notificationItem{
			Key:       fmt.Sprintf("message-%d", message.ID),
			Type:      "message",
			Title:     fmt.Sprintf("%s 的新訊息", message.Name),
			CreatedAt: message.CreatedAt,
			Data: gin.H{
				"id":      message.ID,
				"email":   message.Email,
				"subject": message.Subject,
				"status":  message.Status,
			},
		})
	}

	stockItems := make([]notificationItem, 0, len(products))
	for _, product := range products {
		stockItems = append(stockItems, notificationItem{
			Key:       fmt.Sprintf("stock-%d", product.ID),
			Type:      "stock",
			Title:     fmt.Sprintf("%s 庫存剩餘 %d", product.Name, product.StockQuantity),
			CreatedAt: product.UpdatedAt,
			Data: gin.H{
				"id":            product.ID,
				"sku":           product.SKU,
				"stockQuantity": product.StockQuantity,
			},
		})
	}

	respondData(c, http.StatusOK, "成功查詢通知", gin.H{
		"since":     since,
		"checkedAt": now,
		"counts":    counts,
		"orders":    orderItems,
		"messages":  messageItems,
		"lowStock":  stockItems,
	})
}
