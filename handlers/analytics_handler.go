package handlers

import (
	"dentalshop/analytics"
	"dentalshop/logger"
	"dentalshop/metrics"
	"dentalshop/models"
	"fmt"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
	"strconv"
	"time"
)

const overviewCacheTTL = 60 * time.Second

// 讀取整數查詢參數，未提供時使用預設值，超出範圍回傳400
func parseIntQuery(c *gin.Context, name string, fallback, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		respondError(c, http.StatusBadRequest, "查詢參數錯誤",
			fmt.Errorf("%s must be an integer between %d and %d", name, min, max))
		return 0, false
	}
	return value, true
}

// 只取統計需要的欄位
func revenueOrders(db *gorm.DB, withItems bool) *gorm.DB {
	columns := []string{"id", "status", "payment_status", "total", "created_at"}
	if withItems {
		columns = append(columns, "items")
	}
	return db.Model(&models.Order{}).Select(columns)
}

func lowStockCount(db *gorm.DB, threshold int) (int64, error) {
	var count int64
	err := db.Model(&models.Product{}).Where("stock_quantity <= ?", threshold).Count(&count).Error
	return count, err
}

// 統計總覽
func GetAnalyticsOverviewHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	ctx := c.Request.Context()

	var overview analytics.Overview
	if svc.Cache.Enabled() {
		hit := svc.Cache.Get(ctx, overviewCacheKey, &overview)
		metrics.CacheHit(hit)
		if hit {
			respondData(c, http.StatusOK, "成功查詢統計總覽", overview)
			return
		}
	}

	settings, err := loadSettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "讀取商店設定失敗", err)
		return
	}

	var orders []models.Order
	if err := revenueOrders(db, false).Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單失敗", err)
		return
	}

	var customers, products int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleCustomer).Count(&customers).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶數失敗", err)
		return
	}
	if err := db.Model(&models.Product{}).Count(&products).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢商品數失敗", err)
		return
	}
	lowStock, err := lowStockCount(db, settings.IntMin(models.SettingLowStockThreshold, 5, 0))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢低庫存商品失敗", err)
		return
	}

	overview = analytics.ComputeOverview(orders, customers, products, lowStock, time.Now())
	if err := svc.Cache.Set(ctx, overviewCacheKey, overview, overviewCacheTTL); err != nil {
		logger.FromContext(ctx).Warn("寫入統計快取失敗", "error", err)
	}

	respondData(c, http.StatusOK, "成功查詢統計總覽", overview)
}

// 每月營收
func GetSalesAnalyticsHandler(c *gin.Context, db *gorm.DB) {
	months, ok := parseIntQuery(c, "months", 12, 1, 24)
	if !ok {
		return
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)

	var orders []models.Order
	if err := revenueOrders(db, false).Where("created_at >= ?", start).Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢營收統計", analytics.ComputeMonthlySales(orders, months, now))
}

// 熱銷商品
func GetTopProductsHandler(c *gin.Context, db *gorm.DB) {
	limit, ok := parseIntQuery(c, "limit", 10, 1, 50)
	if !ok {
		return
	}

	var orders []models.Order
	if err := revenueOrders(db, true).Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢熱銷商品", analytics.ComputeTopProducts(orders, limit))
}

// 訂單狀態分布
func GetOrderStatusAnalyticsHandler(c *gin.Context, db *gorm.DB) {
	var orders []models.Order
	if err := db.Model(&models.Order{}).Select("id", "status").Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢訂單狀態統計", analytics.ComputeStatusBreakdown(orders))
}

// 分類銷售，已刪除的商品仍歸入原分類
func GetCategoryAnalyticsHandler(c *gin.Context, db *gorm.DB) {
	var orders []models.Order
	if err := revenueOrders(db, true).Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單失敗", err)
		return
	}

	var products []models.Product
	if err := db.Unscoped().Select("id", "category_id").Find(&products).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢商品失敗", err)
		return
	}

	var categories []models.Category
	if err := db.Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢分類失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢分類銷售", analytics.ComputeCategorySales(orders, products, categories))
}
