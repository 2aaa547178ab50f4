package handlers

import (
	"dentalshop/events"
	"dentalshop/logger"
	"dentalshop/mail"
	"dentalshop/metrics"
	"dentalshop/middleware"
	"dentalshop/models"
	"dentalshop/utils"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"net/http"
	"strings"
	"time"
)

var (
	errInsufficientStock = errors.New("庫存不足")
	errOrderConflict     = errors.New("訂單狀態已被變更")
)

type orderLineRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1,max=1000"`
}

type createOrderRequest struct {
	CustomerName    string                 `json:"customerName" binding:"max=100"`
	CustomerEmail   string                 `json:"customerEmail" binding:"omitempty,email,max=255"`
	CustomerPhone   string                 `json:"customerPhone" binding:"max=50"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	Items           []orderLineRequest     `json:"items" binding:"required,min=1,max=100,dive"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required,oneof=cod bank_transfer card"`
	Notes           string                 `json:"notes" binding:"max=1000"`
}

type updateOrderRequest struct {
	ID            uint    `json:"id"`
	Status        *string `json:"status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
	PaymentStatus *string `json:"paymentStatus" binding:"omitempty,oneof=pending paid failed refunded"`
	Notes         *string `json:"notes" binding:"omitempty,max=1000"`
}

// 合併重複商品，保留第一次出現的順序
func mergeOrderLines(lines []orderLineRequest) []orderLineRequest {
	merged := make([]orderLineRequest, 0, len(lines))
	index := map[uint]int{}
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// 運費: 小計達免運門檻免運，門檻為0表示不提供免運
func shippingFee(settings storeSettings, subtotal decimal.Decimal) decimal.Decimal {
	threshold := settings.Decimal(models.SettingFreeShippingThreshold)
	if threshold.IsPositive() && subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero
	}
	return settings.Decimal(models.SettingShippingFlatRate)
}

func orderTax(settings storeSettings, subtotal decimal.Decimal) decimal.Decimal {
	rate := settings.Decimal(models.SettingTaxRate)
	return subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// 在交易內扣除庫存並建立商品快照
func reserveOrderItems(tx *gorm.DB, lines []orderLineRequest) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero

	for _, line := range lines {
		var product models.Product
		err := tx.Where("active = ?", true).First(&product, line.ProductID).Error
		if err != nil {
			return nil, subtotal, err
		}

		result := tx.Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", product.ID, line.Quantity).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", line.Quantity))
		if result.Error != nil {
			return nil, subtotal, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, subtotal, fmt.Errorf("%w: %s", errInsufficientStock, product.Name)
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			ImageURL:  product.ImageURL,
			Price:     product.Price,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
	}
	return items, subtotal, nil
}

// 送出訂單
func CreateOrderHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order := models.Order{
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		ShippingAddress: req.ShippingAddress,
		Status:          models.OrderStatusPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		Notes:           req.Notes,
	}

	//登入使用者未填寫的聯絡資料以帳號資料補齊
	if userID, login := middleware.CurrentUserID(c); login {
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			respondDBError(c, "使用者不存在", err)
			return
		}
		order.UserID = &user.ID
		if order.CustomerName == "" {
			order.CustomerName = user.Name
		}
		if order.CustomerEmail == "" {
			order.CustomerEmail = user.Email
		}
		if order.CustomerPhone == "" {
			order.CustomerPhone = user.Phone
		}
	}

	var details []FieldError
	if order.CustomerName == "" {
		details = append(details, FieldError{Field: "customerName", Message: "必填"})
	}
	if order.CustomerEmail == "" {
		details = append(details, FieldError{Field: "customerEmail", Message: "必填"})
	}
	if len(details) > 0 {
		respondDetails(c, "請求資料驗證失敗", details)
		return
	}

	settings, err := loadSettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "讀取商店設定失敗", err)
		return
	}

	lines := mergeOrderLines(req.Items)

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if tx.Error != nil {
		respondError(c, http.StatusInternalServerError, "開啟資料庫事務失敗", tx.Error)
		return
	}

	items, subtotal, err := reserveOrderItems(tx, lines)
	if err != nil {
		tx.Rollback()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondError(c, http.StatusBadRequest, "商品不存在或已下架", err)
		case errors.Is(err, errInsufficientStock):
			respondError(c, http.StatusBadRequest, "庫存不足", err)
		default:
			respondError(c, http.StatusInternalServerError, "更新庫存失敗", err)
		}
		return
	}

	order.Items = items
	order.Subtotal = subtotal
	order.ShippingFee = shippingFee(settings, subtotal)
	order.Tax = orderTax(settings, subtotal)
	order.Total = subtotal.Add(order.ShippingFee).Add(order.Tax)
	order.OrderNumber = utils.NewOrderNumber(time.Now())

	if err := tx.Omit("User").Create(&order).Error; err != nil {
		tx.Rollback()
		respondError(c, http.StatusInternalServerError, "提交訂單失敗", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		respondError(c, http.StatusInternalServerError, "提交事務失敗", err)
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	log.Info("訂單已建立", "order_number", order.OrderNumber, "total", order.Total.String())

	//以下步驟失敗只寫log，訂單已成立
	if err := removeOrderedCartItems(c, db, items); err != nil {
		log.Error("訂單已送出，但清除購物車對應商品失敗", "order_number", order.OrderNumber, "error", err)
	}

	svc.publish(ctx, events.OrderEvent{
		Type:          events.OrderCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
	})

	msg, err := mail.OrderConfirmationMessage(order.CustomerEmail, orderMailData(order, storeName(settings, svc)))
	svc.sendMail(ctx, msg, err)

	metrics.OrdersCreated.WithLabelValues(order.PaymentMethod).Inc()
	metrics.OrderRevenue.Add(order.Total.InexactFloat64())

	invalidateProductCache(ctx, svc)
	svc.invalidateOverview(ctx)

	respondData(c, http.StatusCreated, "訂單已送出", order)
}

func storeName(settings storeSettings, svc *Services) string {
	if name := settings[models.SettingStoreName]; name != "" {
		return name
	}
	return svc.Config.App.Name
}

func orderMailData(order models.Order, store string) mail.OrderData {
	lines := make([]mail.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, mail.OrderLine{Name: item.Name, Quantity: item.Quantity, LineTotal: item.LineTotal})
	}
	return mail.OrderData{
		StoreName:    store,
		CustomerName: order.CustomerName,
		OrderNumber:  order.OrderNumber,
		Lines:        lines,
		Subtotal:     order.Subtotal,
		ShippingFee:  order.ShippingFee,
		Tax:          order.Tax,
		Total:        order.Total,
	}
}

// 清除購物車中已下單的商品
func removeOrderedCartItems(c *gin.Context, db *gorm.DB, items []models.OrderItem) error {
	record, err := findCart(c, db, false)
	if err != nil || record == nil {
		return err
	}

	productIDs := make([]uint, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	return db.Unscoped().
		Where("cart_id = ? AND product_id IN ?", record.ID, productIDs).
		Delete(&models.CartItem{}).
		Error
}

// 解析日期查詢參數，接受YYYY-MM-DD或RFC3339，endOfDay為true時日期取當日結束
func parseTimeQuery(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// 查詢訂單列表，一般使用者只能看到自己的訂單
func GetOrderListHandler(c *gin.Context, db *gorm.DB) {
	pagination, ok := parsePagination(c)
	if !ok {
		return
	}

	query := db.Model(&models.Order{})
	if !middleware.IsAdmin(c) {
		userID, _ := middleware.CurrentUserID(c)
		query = query.Where("user_id = ?", userID)
	}

	if status := c.Query("status"); status != "" {
		if !models.IsValidOrderStatus(status) {
			respondError(c, http.StatusBadRequest, "訂單狀態錯誤", fmt.Errorf("unknown status %q", status))
			return
		}
		query = query.Where("status = ?", status)
	}
	if paymentStatus := c.Query("paymentStatus"); paymentStatus != "" {
		if !models.IsValidPaymentStatus(paymentStatus) {
			respondError(c, http.StatusBadRequest, "付款狀態錯誤", fmt.Errorf("unknown payment status %q", paymentStatus))
			return
		}
		query = query.Where("payment_status = ?", paymentStatus)
	}
	if middleware.IsAdmin(c) {
		if q := c.Query("q"); strings.TrimSpace(q) != "" {
			pattern := likePattern(q)
			query = query.Where(
				"LOWER(order_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ?",
				pattern, pattern, pattern,
			)
		}
	}
	if from := c.Query("from"); from != "" {
		t, err := parseTimeQuery(from, false)
		if err != nil {
			respondError(c, http.StatusBadRequest, "日期格式錯誤", err)
			return
		}
		query = query.Where("created_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := parseTimeQuery(to, true)
		if err != nil {
			respondError(c, http.StatusBadRequest, "日期格式錯誤", err)
			return
		}
		query = query.Where("created_at <= ?", t)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單列表失敗", err)
		return
	}

	orders := []models.Order{}
	err := query.
		Order("created_at DESC, id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&orders).
		Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢訂單列表失敗", err)
		return
	}

	respondList(c, "成功查詢訂單列表", orders, pagination.Meta(total))
}

// 查詢訂單，非管理員只能查詢自己的訂單，其他訂單視為不存在
func GetOrderDataHandler(c *gin.Context, db *gorm.DB) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	query := db
	if !middleware.IsAdmin(c) {
		userID, _ := middleware.CurrentUserID(c)
		query = query.Where("user_id = ?", userID)
	}

	var order models.Order
	if err := query.First(&order, orderID).Error; err != nil {
		respondDBError(c, "訂單不存在", err)
		return
	}

	respondData(c, http.StatusOK, "成功查詢訂單", order)
}

// 取消訂單時歸還庫存，已刪除的商品也一併歸還
func restoreStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		err := tx.Unscoped().
			Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).
			Error
		if err != nil {
			return err
		}
	}
	return nil
}

// 以讀取時的狀態為條件只更新有變動的欄位，
// 狀態已被其他請求變更時回傳errOrderConflict，取消訂單時同一交易內歸還庫存
func applyOrderUpdate(tx *gorm.DB, order models.Order, previousStatus string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	result := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, previousStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return errOrderConflict
	}

	if status, ok := updates["status"]; ok && status == models.OrderStatusCancelled {
		return restoreStock(tx, order.Items)
	}
	return nil
}

// 更新訂單狀態、付款狀態與備註
func UpdateOrderHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	//訂單ID可放在路徑或請求資料中
	orderID := req.ID
	if c.Param("id") != "" {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		orderID = id
	}
	if orderID == 0 {
		respondDetails(c, "請求資料驗證失敗", []FieldError{{Field: "id", Message: "必填"}})
		return
	}

	var order models.Order
	if err := db.First(&order, orderID).Error; err != nil {
		respondDBError(c, "訂單不存在", err)
		return
	}

	previousStatus := order.Status
	statusChanged := req.Status != nil && *req.Status != order.Status
	if statusChanged && !models.CanTransition(order.Status, *req.Status) {
		respondError(c, http.StatusBadRequest, "訂單狀態無法變更",
			fmt.Errorf("無法將訂單狀態由%s變更為%s", order.Status, *req.Status))
		return
	}

	updates := map[string]interface{}{}
	if statusChanged {
		updates["status"] = *req.Status
	}
	if req.PaymentStatus != nil && *req.PaymentStatus != order.PaymentStatus {
		updates["payment_status"] = *req.PaymentStatus
	}
	if req.Notes != nil && *req.Notes != order.Notes {
		updates["notes"] = *req.Notes
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return applyOrderUpdate(tx, order, previousStatus, updates)
	})
	if errors.Is(err, errOrderConflict) {
		respondError(c, http.StatusConflict, "訂單狀態已被變更，請重新整理", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "更新訂單失敗", err)
		return
	}
	if len(updates) > 0 {
		if err := db.First(&order, order.ID).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "查詢訂單失敗", err)
			return
		}
	}

	ctx := c.Request.Context()
	if statusChanged {
		logger.FromContext(ctx).Info("訂單狀態已變更",
			"order_number", order.OrderNumber, "from", previousStatus, "to", order.Status)
		svc.publish(ctx, events.OrderEvent{
			Type:           events.OrderStatusChanged,
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			UserID:         order.UserID,
			Status:         order.Status,
			PreviousStatus: previousStatus,
			PaymentStatus:  order.PaymentStatus,
			Total:          order.Total,
		})
		if order.Status == models.OrderStatusCancelled {
			invalidateProductCache(ctx, svc)
		}
	}
	svc.invalidateOverview(ctx)

	respondData(c, http.StatusOK, "成功更新訂單", order)
}
