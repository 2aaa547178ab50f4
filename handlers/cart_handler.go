package handlers

import (
	"dentalshop/cart"
	"dentalshop/middleware"
	"dentalshop/models"
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"net/http"
)

const anonymousCartCookie = "anonymous_cart_id"

var errOutOfStock = errors.New("商品已無庫存")

type cartItemRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"gte=0,max=1000"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,max=1000"`
}

type cartSyncRequest struct {
	Items []cartItemRequest `json:"items" binding:"max=100,dive"`
}

// 從Cookie讀取匿名購物車ID
func getAnonymousCartID(c *gin.Context) string {
	cookie, err := c.Request.Cookie(anonymousCartCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

// 儲存匿名購物車ID至Cookie，maxAge小於0時刪除
func setAnonymousCartID(c *gin.Context, cartID string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     anonymousCartCookie,
		Value:    cartID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// 取得目前使用者或匿名Cookie對應的購物車，create為true時不存在則建立
func findCart(c *gin.Context, db *gorm.DB, create bool) (*models.Cart, error) {
	var cart models.Cart
	query := db
	if userID, login := middleware.CurrentUserID(c); login {
		query = query.Where("user_id = ?", userID)
		cart.UserID = userID
	} else {
		anonymousCartID := getAnonymousCartID(c)
		if anonymousCartID == "" {
			if !create {
				return nil, nil
			}
			anonymousCartID = uuid.NewString()
			setAnonymousCartID(c, anonymousCartID, 30*24*60*60)
		}
		query = query.Where("user_id = 0 AND anonymous_cart_uuid = ?", anonymousCartID)
		cart.AnonymousCartUUID = anonymousCartID
	}

	err := query.First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !create {
			return nil, nil
		}
		err = createCart(db, &cart)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// 同一擁有者同時建立購物車時會違反唯一索引，改為讀取已建立的購物車
func createCart(db *gorm.DB, cart *models.Cart) error {
	createErr := db.Create(cart).Error
	if createErr == nil {
		return nil
	}

	var existing models.Cart
	err := db.
		Where("user_id = ? AND anonymous_cart_uuid = ?", cart.UserID, cart.AnonymousCartUUID).
		First(&existing).
		Error
	if err != nil {
		return createErr
	}
	*cart = existing
	return nil
}

func productToCartItem(product models.Product, quantity int) cart.Item {
	return cart.Item{
		ID:            product.ID,
		Name:          product.Name,
		Slug:          product.Slug,
		SKU:           product.SKU,
		ImageURL:      product.ImageURL,
		Price:         product.Price,
		Quantity:      quantity,
		StockQuantity: product.StockQuantity,
	}
}

// 以商品目前的價格與庫存重新計算購物車
func loadCartState(db *gorm.DB, record *models.Cart) (cart.State, error) {
	if record == nil {
		return cart.Empty(), nil
	}

	var items []models.CartItem
	err := db.
		Where("cart_id = ?", record.ID).
		Preload("Product", "active = ?", true).
		Order("id ASC").
		Find(&items).
		Error
	if err != nil {
		return cart.State{}, err
	}

	lines := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if item.Product.ID == 0 {
			continue
		}
		lines = append(lines, productToCartItem(item.Product, item.Quantity))
	}
	return cart.Reduce(cart.Empty(), cart.Action{Type: cart.LoadCart, Items: lines}), nil
}

// 以新狀態覆蓋購物車內容
func saveCartState(db *gorm.DB, record *models.Cart, state cart.State) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("cart_id = ?", record.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if len(state.Items) == 0 {
			return nil
		}
		rows := make([]models.CartItem, 0, len(state.Items))
		for _, item := range state.Items {
			rows = append(rows, models.CartItem{CartID: record.ID, ProductID: item.ID, Quantity: item.Quantity})
		}
		return tx.Omit("Product").Create(&rows).Error
	})
}

// 讀取購物車、套用一個動作並儲存
func applyCartAction(c *gin.Context, db *gorm.DB, action cart.Action, message string) {
	record, err := findCart(c, db, true)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢購物車失敗", err)
		return
	}

	state, err := loadCartState(db, record)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢購物車失敗", err)
		return
	}

	state = cart.Reduce(state, action)
	if err := saveCartState(db, record, state); err != nil {
		respondError(c, http.StatusInternalServerError, "更新購物車失敗", err)
		return
	}

	respondData(c, http.StatusOK, message, state)
}

func findActiveProduct(db *gorm.DB, id uint) (models.Product, error) {
	var product models.Product
	err := db.Where("active = ?", true).First(&product, id).Error
	return product, err
}

// 查詢購物車商品
func GetCartHandler(c *gin.Context, db *gorm.DB) {
	record, err := findCart(c, db, false)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢購物車失敗", err)
		return
	}

	state, err := loadCartState(db, record)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢購物車失敗", err)
		return
	}
	respondData(c, http.StatusOK, "成功查詢購物車", state)
}

// 新增商品至購物車
func AddToCartHandler(c *gin.Context, db *gorm.DB) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := findActiveProduct(db, req.ProductID)
	if err != nil {
		respondDBError(c, "商品不存在", err)
		return
	}
	if !product.InStock() {
		respondError(c, http.StatusBadRequest, "新增物品至購物車失敗", errOutOfStock)
		return
	}

	applyCartAction(c, db, cart.Action{
		Type: cart.AddItem,
		Item: productToCartItem(product, req.Quantity),
	}, "成功新增物品至購物車")
}

// 更新購物車商品數量，數量為0時移除
func UpdateCartItemQuantityHandler(c *gin.Context, db *gorm.DB) {
	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return
	}

	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	applyCartAction(c, db, cart.Action{
		Type:     cart.UpdateQuantity,
		ID:       productID,
		Quantity: *req.Quantity,
	}, "成功更新購物車物品數量")
}

// 刪除購物車商品
func DeleteCartItemHandler(c *gin.Context, db *gorm.DB) {
	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return
	}
	applyCartAction(c, db, cart.Action{Type: cart.RemoveItem, ID: productID}, "成功刪除購物車物品")
}

// 清除購物車商品
func ClearCartHandler(c *gin.Context, db *gorm.DB) {
	applyCartAction(c, db, cart.Action{Type: cart.ClearCart}, "成功清除購物車")
}

// 以瀏覽器保存的購物車覆蓋伺服器購物車，價格與庫存以資料庫為準
func SyncCartHandler(c *gin.Context, db *gorm.DB) {
	var req cartSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ids := make([]uint, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}
	var products []models.Product
	if len(ids) > 0 {
		if err := db.Where("id IN ? AND active = ?", ids, true).Find(&products).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "同步購物車失敗", err)
			return
		}
	}
	byID := make(map[uint]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	lines := make([]cart.Item, 0, len(req.Items))
	for _, item := range req.Items {
		if product, ok := byID[item.ProductID]; ok {
			lines = append(lines, productToCartItem(product, item.Quantity))
		}
	}

	applyCartAction(c, db, cart.Action{Type: cart.LoadCart, Items: lines}, "成功同步購物車")
}

// 合併匿名和使用者購物車(登入或註冊後呼叫)
func MergeCartHandler(c *gin.Context, db *gorm.DB) {
	//判斷是否已有匿名購物車
	anonymousCartID := getAnonymousCartID(c)
	if anonymousCartID == "" {
		respondError(c, http.StatusBadRequest, "尚未創建匿名購物車，無須合併", nil)
		return
	}

	var anonymousCart models.Cart
	err := db.Where("user_id = 0 AND anonymous_cart_uuid = ?", anonymousCartID).First(&anonymousCart).Error
	if err != nil {
		respondDBError(c, "匿名購物車不存在", err)
		return
	}
	anonymousState, err := loadCartState(db, &anonymousCart)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢匿名購物車失敗", err)
		return
	}

	userCart, err := findCart(c, db, true)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢購物車失敗", err)
		return
	}
	state, err := loadCartState(db, userCart)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢購物車失敗", err)
		return
	}

	//相同商品數量相加，以庫存為上限
	for _, item := range anonymousState.Items {
		state = cart.Reduce(state, cart.Action{Type: cart.AddItem, Item: item})
	}
	if err := saveCartState(db, userCart, state); err != nil {
		respondError(c, http.StatusInternalServerError, "合併購物車商品失敗", err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("cart_id = ?", anonymousCart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&anonymousCart).Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "成功合併購物車商品，刪除匿名購物車失敗", err)
		return
	}
	setAnonymousCartID(c, "", -1)

	respondData(c, http.StatusOK, "成功合併商品至購物車且刪除匿名購物車", state)
}
