package handlers

import (
	"dentalshop/models"
	"dentalshop/utils"
	"errors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
	"strconv"
	"strings"
)

type categoryWithCount struct {
	models.Category
	ProductCount int64 `json:"productCount"`
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=5000"`
	ImageURL    string `json:"imageUrl" binding:"max=500"`
	SortOrder   int    `json:"sortOrder"`
}

// 各分類目前的商品數量
func categoryProductCounts(db *gorm.DB) (map[uint]int64, error) {
	var rows []struct {
		CategoryID uint
		Count      int64
	}
	err := db.Model(&models.Product{}).
		Select("category_id, COUNT(*) AS count").
		Where("category_id IS NOT NULL").
		Group("category_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}
	return counts, nil
}

// 查詢分類列表
func GetCategoryListHandler(c *gin.Context, db *gorm.DB) {
	var categories []models.Category
	if err := db.Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "無法讀取分類列表", err)
		return
	}

	counts, err := categoryProductCounts(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "無法讀取分類列表", err)
		return
	}

	data := make([]categoryWithCount, 0, len(categories))
	for _, category := range categories {
		data = append(data, categoryWithCount{Category: category, ProductCount: counts[category.ID]})
	}
	respondData(c, http.StatusOK, "成功讀取分類列表", data)
}

func findCategory(db *gorm.DB, idOrSlug string) (models.Category, error) {
	var category models.Category
	if id, err := strconv.ParseUint(idOrSlug, 10, 64); err == nil {
		err := db.First(&category, id).Error
		return category, err
	}
	err := db.Where("slug = ?", idOrSlug).First(&category).Error
	return category, err
}

// 以ID或slug查詢分類
func GetCategoryDataHandler(c *gin.Context, db *gorm.DB) {
	category, err := findCategory(db, c.Param("id"))
	if err != nil {
		respondDBError(c, "分類不存在", err)
		return
	}

	var count int64
	if err := db.Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&count).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "無法讀取分類", err)
		return
	}
	respondData(c, http.StatusOK, "成功查詢分類", categoryWithCount{Category: category, ProductCount: count})
}

// 分類名稱不可重複，已刪除的分類也算
func isCategoryNameTaken(db *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	query := db.Unscoped().Model(&models.Category{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// 新增分類
func CreateCategoryHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)

	taken, err := isCategoryNameTaken(db, name, 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "新增分類失敗", err)
		return
	}
	if taken {
		respondDetails(c, "新增分類失敗", []FieldError{{Field: "name", Message: "分類名稱已存在"}})
		return
	}

	slug, err := utils.UniqueSlug(db, &models.Category{}, utils.Slugify(name), 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "新增分類失敗", err)
		return
	}

	category := models.Category{
		Name:        name,
		Slug:        slug,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		SortOrder:   req.SortOrder,
	}
	if err := db.Create(&category).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "新增分類失敗", err)
		return
	}
	invalidateProductCache(c.Request.Context(), svc)

	respondData(c, http.StatusCreated, "成功新增分類", categoryWithCount{Category: category})
}

// 修改分類
func UpdateCategoryHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var category models.Category
	if err := db.First(&category, id).Error; err != nil {
		respondDBError(c, "分類不存在", err)
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)

	taken, err := isCategoryNameTaken(db, name, category.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "修改分類失敗", err)
		return
	}
	if taken {
		respondDetails(c, "修改分類失敗", []FieldError{{Field: "name", Message: "分類名稱已存在"}})
		return
	}

	if name != category.Name {
		category.Slug, err = utils.UniqueSlug(db, &models.Category{}, utils.Slugify(name), category.ID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "修改分類失敗", err)
			return
		}
	}
	category.Name = name
	category.Description = req.Description
	category.ImageURL = req.ImageURL
	category.SortOrder = req.SortOrder

	if err := db.Save(&category).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "修改分類失敗", err)
		return
	}
	invalidateProductCache(c.Request.Context(), svc)

	var count int64
	db.Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&count)
	respondData(c, http.StatusOK, "成功修改分類", categoryWithCount{Category: category, ProductCount: count})
}

var errCategoryInUse = errors.New("分類下仍有商品")

// 刪除分類，分類下仍有商品時不可刪除
func DeleteCategoryHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var category models.Category
	if err := db.First(&category, id).Error; err != nil {
		respondDBError(c, "分類不存在", err)
		return
	}

	var count int64
	if err := db.Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&count).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "刪除分類失敗", err)
		return
	}
	if count > 0 {
		respondError(c, http.StatusBadRequest, "刪除分類失敗", errCategoryInUse)
		return
	}

	if err := db.Delete(&category).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "刪除分類失敗", err)
		return
	}
	invalidateProductCache(c.Request.Context(), svc)

	respondData(c, http.StatusOK, "成功刪除分類", gin.H{"id": category.ID})
}
