package handlers

import (
	"dentalshop/logger"
	"dentalshop/models"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"net/http"
	"strings"
)

type customerSummary struct {
	models.User
	OrderCount int             `json:"orderCount"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
}

type customerDetail struct {
	customerSummary
	RecentOrders []models.Order `json:"recentOrders"`
}

type customerPatchRequest struct {
	Status     *string `json:"status" binding:"omitempty,oneof=active suspended"`
	Name       *string `json:"name" binding:"omitempty,min=1,max=100"`
	Phone      *string `json:"phone" binding:"omitempty,max=50"`
	ClinicName *string `json:"clinicName" binding:"omitempty,max=255"`
}

// 彙總每位客戶的訂單數與消費金額，不計入取消或退款訂單
func summarizeCustomers(db *gorm.DB, users []models.User) ([]customerSummary, error) {
	summaries := make([]customerSummary, 0, len(users))
	if len(users) == 0 {
		return summaries, nil
	}

	ids := make([]uint, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}

	var orders []models.Order
	err := db.
		Select("id", "user_id", "status", "payment_status", "total").
		Where("user_id IN ?", ids).
		Find(&orders).
		Error
	if err != nil {
		return nil, err
	}

	counts := map[uint]int{}
	spent := map[uint]decimal.Decimal{}
	for _, order := range orders {
		if order.UserID == nil {
			continue
		}
		counts[*order.UserID]++
		if order.CountsAsRevenue() {
			spent[*order.UserID] = spent[*order.UserID].Add(order.Total)
		}
	}

	for _, user := range users {
		summaries = append(summaries, customerSummary{
			User:       user,
			OrderCount: counts[user.ID],
			TotalSpent: spent[user.ID],
		})
	}
	return summaries, nil
}

func findCustomer(c *gin.Context, db *gorm.DB) (models.User, bool) {
	var user models.User
	id, ok := parseIDParam(c, "id")
	if !ok {
		return user, false
	}
	if err := db.Where("role = ?", models.RoleCustomer).First(&user, id).Error; err != nil {
		respondDBError(c, "客戶不存在", err)
		return user, false
	}
	return user, true
}

// 查詢客戶列表
func GetCustomerListHandler(c *gin.Context, db *gorm.DB) {
	pagination, ok := parsePagination(c)
	if !ok {
		return
	}

	query := db.Model(&models.User{}).Where("role = ?", models.RoleCustomer)
	if status := c.Query("status"); status != "" {
		if status != models.UserStatusActive && status != models.UserStatusSuspended {
			respondError(c, http.StatusBadRequest, "客戶狀態錯誤", fmt.Errorf("unknown status %q", status))
			return
		}
		query = query.Where("status = ?", status)
	}
	if q := c.Query("q"); strings.TrimSpace(q) != "" {
		pattern := likePattern(q)
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(clinic_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶列表失敗", err)
		return
	}

	var users []models.User
	err := query.
		Order("created_at DESC, id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&users).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶列表失敗", err)
		return
	}

	summaries, err := summarizeCustomers(db, users)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶訂單失敗", err)
		return
	}
	respondList(c, "成功查詢客戶列表", summaries, pagination.Meta(total))
}

// 查詢客戶資料與最近訂單
func GetCustomerDataHandler(c *gin.Context, db *gorm.DB) {
	user, ok := findCustomer(c, db)
	if !ok {
		return
	}

	summaries, err := summarizeCustomers(db, []models.User{user})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶訂單失敗", err)
		return
	}

	recent := []models.Order{}
	err = db.Where("user_id = ?", user.ID).
		Order("created_at DESC, id DESC").
		Limit(10).
		Find(&recent).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶訂單失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢客戶資料", customerDetail{
		customerSummary: summaries[0],
		RecentOrders:    recent,
	})
}

// 修改客戶資料，停權時一併登出所有裝置
func PatchCustomerHandler(c *gin.Context, db *gorm.DB) {
	var req customerPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, ok := findCustomer(c, db)
	if !ok {
		return
	}

	suspend := req.Status != nil && *req.Status == models.UserStatusSuspended && user.Status != models.UserStatusSuspended
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.ClinicName != nil {
		user.ClinicName = *req.ClinicName
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		if !suspend {
			return nil
		}
		return tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.LoginToken{}).Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "修改客戶資料失敗", err)
		return
	}

	if suspend {
		logger.FromContext(c.Request.Context()).Info("客戶已停權", "user_id", user.ID)
	}
	respondData(c, http.StatusOK, "成功修改客戶資料", user)
}

// 刪除客戶，已有訂單的客戶不可刪除
func DeleteCustomerHandler(c *gin.Context, db *gorm.DB) {
	user, ok := findCustomer(c, db)
	if !ok {
		return
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Where("user_id = ?", user.ID).Count(&orderCount).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢客戶訂單失敗", err)
		return
	}
	if orderCount > 0 {
		respondError(c, http.StatusBadRequest, "客戶已有訂單，無法刪除",
			errors.New("customer has orders, suspend the account instead"))
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.LoginToken{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.WishlistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "刪除客戶失敗", err)
		return
	}

	respondData(c, http.StatusOK, "成功刪除客戶", nil)
}
