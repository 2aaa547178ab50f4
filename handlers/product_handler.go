package handlers

import (
	"context"
	"dentalshop/logger"
	"dentalshop/metrics"
	"dentalshop/middleware"
	"dentalshop/models"
	"dentalshop/utils"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"net/http"
	"strconv"
	"time"
)

const (
	productCacheTag = "products:keys"
	productCacheTTL = 5 * time.Minute
)

var productSorts = map[string]string{
	"newest":     "created_at DESC, id DESC",
	"price_asc":  "price ASC, id ASC",
	"price_desc": "price DESC, id DESC",
	"name":       "name ASC, id ASC",
}

type productListResult struct {
	Data []models.Product `json:"data"`
	Meta utils.PageMeta   `json:"meta"`
}

// 商品有異動時清除所有列表快取
func invalidateProductCache(ctx context.Context, svc *Services) {
	if err := svc.Cache.Flush(ctx, productCacheTag); err != nil {
		logger.FromContext(ctx).Warn("清除商品快取失敗", "error", err)
	}
}

// 查詢商品列表
func GetProductListHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	pagination, ok := parsePagination(c)
	if !ok {
		return
	}

	sortKey := c.DefaultQuery("sort", "newest")
	order, ok := productSorts[sortKey]
	if !ok {
		respondError(c, http.StatusBadRequest, "排序方式錯誤", fmt.Errorf("unknown sort %q", sortKey))
		return
	}

	includeInactive := middleware.IsAdmin(c) && c.Query("includeInactive") == "true"
	query := db.Model(&models.Product{})
	if !includeInactive {
		query = query.Where("active = ?", true)
	}

	if category := c.Query("category"); category != "" {
		if id, err := strconv.ParseUint(category, 10, 64); err == nil {
			query = query.Where("category_id = ?", id)
		} else {
			query = query.Where("category_id IN (?)", db.Model(&models.Category{}).Select("id").Where("slug = ?", category))
		}
	}
	if q := c.Query("q"); q != "" {
		pattern := likePattern(q)
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(description) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	for param, clause := range map[string]string{"minPrice": "price >= ?", "maxPrice": "price <= ?"} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "價格篩選格式錯誤", err)
			return
		}
		query = query.Where(clause, price)
	}
	if c.Query("featured") == "true" {
		query = query.Where("featured = ?", true)
	}
	if c.Query("inStock") == "true" {
		query = query.Where("stock_quantity > ?", 0)
	}

	//嘗試從快取讀取
	cacheKey := fmt.Sprintf("products:list:%t:%s", includeInactive, c.Request.URL.Query().Encode())
	var result productListResult
	if svc.Cache.Get(c.Request.Context(), cacheKey, &result) {
		metrics.CacheHit(true)
		respondList(c, "成功讀取商品列表", result.Data, result.Meta)
		return
	}
	if svc.Cache.Enabled() {
		metrics.CacheHit(false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "無法讀取商品列表", err)
		return
	}

	products := []models.Product{}
	err := query.
		Preload("Category").
		Order(order).
		Limit(pagination.Limit).
		Offset(pagination.Offset()).
		Find(&products).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "無法讀取商品列表", err)
		return
	}

	result = productListResult{Data: products, Meta: pagination.Meta(total)}
	if err := svc.Cache.SetTagged(c.Request.Context(), productCacheTag, cacheKey, result, productCacheTTL); err != nil {
		_ = c.Error(err)
	}
	respondList(c, "成功讀取商品列表", result.Data, result.Meta)
}

// 以ID或slug查詢商品
func findProduct(db *gorm.DB, idOrSlug string) (models.Product, error) {
	var product models.Product
	query := db.Preload("Category")
	if id, err := strconv.ParseUint(idOrSlug, 10, 64); err == nil {
		err := query.First(&product, id).Error
		return product, err
	}
	err := query.Where("slug = ?", idOrSlug).First(&product).Error
	return product, err
}

// 查詢商品詳細資料
func GetProductDataHandler(c *gin.Context, db *gorm.DB) {
	product, err := findProduct(db, c.Param("id"))
	if err == nil && !product.Active && !middleware.IsAdmin(c) {
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		respondDBError(c, "商品不存在", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢商品資料", product)
}
