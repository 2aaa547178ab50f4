package handlers

import (
	"context"
	"dentalshop/logger"
	"dentalshop/models"
	"dentalshop/utils"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const maxImageSize = 5 << 20

var allowImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type productRequest struct {
	Name             string            `json:"name" binding:"required,max=255"`
	SKU              string            `json:"sku" binding:"required,max=100"`
	Description      string            `json:"description" binding:"max=20000"`
	ShortDescription string            `json:"shortDescription" binding:"max=500"`
	Brand            string            `json:"brand" binding:"max=100"`
	Price            *decimal.Decimal  `json:"price" binding:"required"`
	CompareAtPrice   *decimal.Decimal  `json:"compareAtPrice"`
	StockQuantity    *int              `json:"stockQuantity" binding:"required,gte=0"`
	CategoryID       *uint             `json:"categoryId"`
	ImageURL         string            `json:"imageUrl" binding:"max=500"`
	Images           []string          `json:"images" binding:"max=20"`
	Specifications   map[string]string `json:"specifications"`
	Featured         bool              `json:"featured"`
	Active           *bool             `json:"active"`
}

type productPatchRequest struct {
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
	StockQuantity  *int             `json:"stockQuantity" binding:"omitempty,gte=0"`
	Active         *bool            `json:"active"`
	Featured       *bool            `json:"featured"`
}

func checkMoney(details []FieldError, field string, value *decimal.Decimal) []FieldError {
	if value != nil && value.IsNegative() {
		details = append(details, FieldError{Field: field, Message: "不可小於0"})
	}
	return details
}

// 檢查SKU與分類，回傳欄位錯誤
func validateProduct(db *gorm.DB, req *productRequest, excludeID uint) ([]FieldError, error) {
	var details []FieldError
	details = checkMoney(details, "price", req.Price)
	details = checkMoney(details, "compareAtPrice", req.CompareAtPrice)

	//檢查SKU是否重複
	var count int64
	query := db.Unscoped().Model(&models.Product{}).Where("sku = ?", strings.TrimSpace(req.SKU))
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		details = append(details, FieldError{Field: "sku", Message: "SKU已存在"})
	}

	if req.CategoryID != nil {
		var category models.Category
		err := db.First(&category, *req.CategoryID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			details = append(details, FieldError{Field: "categoryId", Message: "分類不存在"})
		} else if err != nil {
			return nil, err
		}
	}
	return details, nil
}

func (req *productRequest) apply(product *models.Product) {
	product.Name = strings.TrimSpace(req.Name)
	product.SKU = strings.TrimSpace(req.SKU)
	product.Description = req.Description
	product.ShortDescription = req.ShortDescription
	product.Brand = strings.TrimSpace(req.Brand)
	product.Price = req.Price.Round(2)
	product.CompareAtPrice = decimal.NullDecimal{}
	if req.CompareAtPrice != nil {
		product.CompareAtPrice = decimal.NewNullDecimal(req.CompareAtPrice.Round(2))
	}
	product.StockQuantity = *req.StockQuantity
	product.CategoryID = req.CategoryID
	product.ImageURL = req.ImageURL
	product.Images = req.Images
	if product.Images == nil {
		product.Images = []string{}
	}
	product.Specifications = req.Specifications
	if product.Specifications == nil {
		product.Specifications = map[string]string{}
	}
	product.Featured = req.Featured
	product.Active = req.Active == nil || *req.Active
}

// 新增商品
func CreateProductHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	details, err := validateProduct(db, &req, 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "新增商品失敗", err)
		return
	}
	if len(details) > 0 {
		respondDetails(c, "新增商品失敗", details)
		return
	}

	var product models.Product
	req.apply(&product)
	product.Slug, err = utils.UniqueSlug(db, &models.Product{}, utils.Slugify(product.Name), 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "新增商品失敗", err)
		return
	}

	if err := db.Create(&product).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "新增商品失敗", err)
		return
	}
	invalidateProductCache(c.Request.Context(), svc)

	db.Preload("Category").First(&product, product.ID)
	respondData(c, http.StatusCreated, "成功新增商品", product)
}

// 修改商品全部欄位
func UpdateProductHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		respondDBError(c, "商品不存在", err)
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	details, err := validateProduct(db, &req, product.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "修改商品失敗", err)
		return
	}
	if len(details) > 0 {
		respondDetails(c, "修改商品失敗", details)
		return
	}

	oldName := product.Name
	req.apply(&product)
	//名稱變更時重新產生slug
	if product.Name != oldName {
		product.Slug, err = utils.UniqueSlug(db, &models.Product{}, utils.Slugify(product.Name), product.ID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "修改商品失敗", err)
			return
		}
	}

	product.Category = nil
	if err := db.Save(&product).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "修改商品失敗", err)
		return
	}
	invalidateProductCache(c.Request.Context(), svc)

	db.Preload("Category").First(&product, product.ID)
	respondData(c, http.StatusOK, "成功修改商品", product)
}

// 修改商品價格、庫存與上架狀態
func PatchProductHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		respondDBError(c, "商品不存在", err)
		return
	}

	var req productPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var details []FieldError
	details = checkMoney(details, "price", req.Price)
	details = checkMoney(details, "compareAtPrice", req.CompareAtPrice)
	if len(details) > 0 {
		respondDetails(c, "修改商品失敗", details)
		return
	}

	updates := map[string]interface{}{}
	if req.Price != nil {
		updates["price"] = req.Price.Round(2)
	}
	if req.CompareAtPrice != nil {
		updates["compare_at_price"] = decimal.NewNullDecimal(req.CompareAtPrice.Round(2))
	}
	if req.StockQuantity != nil {
		updates["stock_quantity"] = *req.StockQuantity
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.Featured != nil {
		updates["featured"] = *req.Featured
	}
	if len(updates) == 0 {
		respondError(c, http.StatusBadRequest, "沒有需要修改的欄位", nil)
		return
	}

	if err := db.Model(&product).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "修改商品失敗", err)
		return
	}
	invalidateProductCache(c.Request.Context(), svc)

	db.Preload("Category").First(&product, product.ID)
	respondData(c, http.StatusOK, "成功修改商品", product)
}

// 刪除商品，並移除購物車與收藏清單中的此商品
func DeleteProductHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		respondDBError(c, "商品不存在", err)
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("product_id = ?", product.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("product_id = ?", product.ID).Delete(&models.WishlistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "刪除商品失敗", err)
		return
	}
	removeProductImages(c.Request.Context(), db, svc, product)
	invalidateProductCache(c.Request.Context(), svc)

	respondData(c, http.StatusOK, "成功刪除商品", gin.H{"id": product.ID})
}

// 上傳到本站儲存空間的商品圖片路徑，其他網址的圖片不處理
func storedImagePaths(svc *Services, product models.Product) []string {
	prefix := svc.Storage.URL("")
	seen := map[string]bool{}
	var paths []string
	for _, url := range append([]string{product.ImageURL}, product.Images...) {
		if !strings.HasPrefix(url, prefix) {
			continue
		}
		path := strings.TrimPrefix(url, prefix)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

// 刪除商品後移除只屬於該商品的圖片，失敗時只記錄
func removeProductImages(ctx context.Context, db *gorm.DB, svc *Services, product models.Product) {
	for _, path := range storedImagePaths(svc, product) {
		url := svc.Storage.URL(path)
		var shared int64
		err := db.Model(&models.Product{}).
			Where("id <> ? AND (image_url = ? OR images LIKE ?)", product.ID, url, "%\""+url+"\"%").
			Count(&shared).
			Error
		if err != nil {
			logger.FromContext(ctx).Warn("查詢商品圖片失敗", "path", path, "error", err)
			continue
		}
		if shared > 0 {
			continue
		}
		if err := svc.Storage.Delete(ctx, path); err != nil {
			logger.FromContext(ctx).Warn("刪除商品圖片失敗", "path", path, "error", err)
		}
	}
}

func isValidImageExtension(file *multipart.FileHeader) (string, bool) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType, ok := allowImageExtensions[ext]
	return contentType, ok
}

func makeUniqueFileName(file *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	base := utils.Slugify(strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename)))
	return fmt.Sprintf("products/%s_%d%s", base, time.Now().UnixNano(), ext)
}

// 上傳商品圖片
func UploadImageHandler(c *gin.Context, svc *Services) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "綁定圖片失敗", err)
		return
	}

	contentType, ok := isValidImageExtension(file)
	if !ok {
		respondDetails(c, "圖片檔案格式錯誤", []FieldError{{Field: "image", Message: "僅接受jpg、jpeg、png、webp"}})
		return
	}
	if file.Size > maxImageSize {
		respondDetails(c, "圖片檔案過大", []FieldError{{Field: "image", Message: "檔案不可超過5MB"}})
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "讀取圖片失敗", err)
		return
	}
	defer src.Close()

	path := makeUniqueFileName(file)
	if err := svc.Storage.Put(c.Request.Context(), path, src, contentType); err != nil {
		respondError(c, http.StatusInternalServerError, "儲存圖片失敗", err)
		return
	}

	respondData(c, http.StatusCreated, "成功上傳圖片", gin.H{
		"url":  svc.Storage.URL(path),
		"path": path,
	})
}
