package handlers

import (
	"dentalshop/middleware"
	"dentalshop/models"
	"dentalshop/wishlist"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"net/http"
)

type wishlistRequest struct {
	ProductID uint `json:"productId" binding:"required"`
}

type wishlistSyncRequest struct {
	ProductIDs []uint `json:"productIds" binding:"max=200"`
}

func loadWishlistIDs(db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.WishlistItem{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("product_id", &ids).
		Error
	return ids, err
}

// 依收藏順序回傳仍上架的商品
func wishlistProducts(db *gorm.DB, ids []uint) ([]models.Product, error) {
	products := []models.Product{}
	if len(ids) == 0 {
		return products, nil
	}

	var found []models.Product
	if err := db.Where("id IN ? AND active = ?", ids, true).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(found))
	for _, product := range found {
		byID[product.ID] = product
	}
	for _, id := range ids {
		if product, ok := byID[id]; ok {
			products = append(products, product)
		}
	}
	return products, nil
}

// 以新的ID清單覆蓋使用者的收藏，收藏順序由資料列的id決定。
// after只在before之後附加新項目時做差異更新，順序改變則整份重寫
func saveWishlist(db *gorm.DB, userID uint, before, after []uint) error {
	keep := make(map[uint]bool, len(after))
	for _, id := range after {
		keep[id] = true
	}
	var kept, removed []uint
	for _, id := range before {
		if keep[id] {
			kept = append(kept, id)
		} else {
			removed = append(removed, id)
		}
	}

	added := after[len(kept):]
	rewrite := !hasPrefix(after, kept)
	if rewrite {
		removed = before
		added = after
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if len(removed) > 0 {
			err := tx.Unscoped().
				Where("user_id = ? AND product_id IN ?", userID, removed).
				Delete(&models.WishlistItem{}).
				Error
			if err != nil {
				return err
			}
		}
		for _, id := range added {
			if err := tx.Omit("Product").Create(&models.WishlistItem{UserID: userID, ProductID: id}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(ids, prefix []uint) bool {
	if len(prefix) > len(ids) {
		return false
	}
	for i, id := range prefix {
		if ids[i] != id {
			return false
		}
	}
	return true
}

func applyWishlistAction(c *gin.Context, db *gorm.DB, action wishlist.Action, message string) {
	userID, _ := middleware.CurrentUserID(c)

	before, err := loadWishlistIDs(db, userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢收藏清單失敗", err)
		return
	}

	after := wishlist.Reduce(before, action)
	if err := saveWishlist(db, userID, before, after); err != nil {
		respondError(c, http.StatusInternalServerError, "更新收藏清單失敗", err)
		return
	}

	products, err := wishlistProducts(db, after)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢收藏清單失敗", err)
		return
	}
	respondData(c, http.StatusOK, message, products)
}

// 加入收藏前確認商品存在且上架
func bindWishlistProduct(c *gin.Context, db *gorm.DB) (uint, bool) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return 0, false
	}
	if _, err := findActiveProduct(db, req.ProductID); err != nil {
		respondDBError(c, "商品不存在", err)
		return 0, false
	}
	return req.ProductID, true
}

func GetWishlistHandler(c *gin.Context, db *gorm.DB) {
	userID, _ := middleware.CurrentUserID(c)

	ids, err := loadWishlistIDs(db, userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢收藏清單失敗", err)
		return
	}
	products, err := wishlistProducts(db, ids)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢收藏清單失敗", err)
		return
	}
	respondData(c, http.StatusOK, "成功查詢收藏清單", products)
}

func AddToWishlistHandler(c *gin.Context, db *gorm.DB) {
	productID, ok := bindWishlistProduct(c, db)
	if !ok {
		return
	}
	applyWishlistAction(c, db, wishlist.Action{Type: wishlist.Add, ID: productID}, "成功加入收藏清單")
}

func ToggleWishlistHandler(c *gin.Context, db *gorm.DB) {
	productID, ok := bindWishlistProduct(c, db)
	if !ok {
		return
	}
	applyWishlistAction(c, db, wishlist.Action{Type: wishlist.Toggle, ID: productID}, "成功更新收藏清單")
}

func DeleteWishlistItemHandler(c *gin.Context, db *gorm.DB) {
	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return
	}
	applyWishlistAction(c, db, wishlist.Action{Type: wishlist.Remove, ID: productID}, "成功移除收藏商品")
}

func ClearWishlistHandler(c *gin.Context, db *gorm.DB) {
	applyWishlistAction(c, db, wishlist.Action{Type: wishlist.Clear}, "成功清除收藏清單")
}

// 以瀏覽器保存的收藏覆蓋伺服器資料，不存在或下架的商品略過
func SyncWishlistHandler(c *gin.Context, db *gorm.DB) {
	var req wishlistSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ids := []uint{}
	if len(req.ProductIDs) > 0 {
		err := db.Model(&models.Product{}).
			Where("id IN ? AND active = ?", req.ProductIDs, true).
			Pluck("id", &ids).
			Error
		if err != nil {
			respondError(c, http.StatusInternalServerError, "同步收藏清單失敗", err)
			return
		}
	}
	valid := make(map[uint]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}
	ordered := make([]uint, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		if valid[id] {
			ordered = append(ordered, id)
		}
	}

	applyWishlistAction(c, db, wishlist.Action{Type: wishlist.Load, IDs: ordered}, "成功同步收藏清單")
}
