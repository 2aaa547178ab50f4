package handlers

import (
	"testing"

	"dentalshop/models"
	"dentalshop/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyOrderUpdateRequiresReadStatus(t *testing.T) {
	db := testutil.NewDB(t)
	product := models.Product{Name: "Curing Light", Slug: "curing-light", SKU: "CL-1", Price: decimal.NewFromInt(80), StockQuantity: 2, Active: true}
	require.NoError(t, db.Create(&product).Error)

	order := models.Order{
		OrderNumber:   "DS-20261019-0001",
		CustomerName:  "Dr. Lin",
		CustomerEmail: "lin@clinic.test",
		Items: []models.OrderItem{
			{ProductID: product.ID, Name: product.Name, SKU: product.SKU, Price: product.Price, Quantity: 3, LineTotal: decimal.NewFromInt(240)},
		},
		Subtotal:      decimal.NewFromInt(240),
		Total:         decimal.NewFromInt(240),
		Status:        models.OrderStatusPending,
		PaymentMethod: "cod",
		PaymentStatus: models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(&order).Error)
	stale := order

	cancel := func(read models.Order, status string) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return applyOrderUpdate(tx, read, status, map[string]interface{}{"status": models.OrderStatusCancelled})
		})
	}
	require.NoError(t, cancel(order, models.OrderStatusPending))

	//第二個請求讀到的仍是pending，不可再次歸還庫存
	assert.ErrorIs(t, cancel(stale, models.OrderStatusPending), errOrderConflict)

	var saved models.Product
	require.NoError(t, db.First(&saved, product.ID).Error)
	assert.Equal(t, 5, saved.StockQuantity)

	//只寫入有變動的欄位
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("customer_name", "Dr. Lin Wei").Error)
	err := db.Transaction(func(tx *gorm.DB) error {
		return applyOrderUpdate(tx, stale, models.OrderStatusCancelled, map[string]interface{}{"notes": "聯絡後再出貨"})
	})
	require.NoError(t, err)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, reloaded.Status)
	assert.Equal(t, "Dr. Lin Wei", reloaded.CustomerName)
	assert.Equal(t, "聯絡後再出貨", reloaded.Notes)

	assert.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return applyOrderUpdate(tx, stale, models.OrderStatusPending, nil)
	}))
}

func TestCreateCartReusesExistingOwner(t *testing.T) {
	db := testutil.NewDB(t)

	first := models.Cart{UserID: 7}
	require.NoError(t, createCart(db, &first))
	assert.Error(t, db.Create(&models.Cart{UserID: 7}).Error)

	second := models.Cart{UserID: 7}
	require.NoError(t, createCart(db, &second))
	assert.Equal(t, first.ID, second.ID)

	anonymous := models.Cart{AnonymousCartUUID: "3f1c9a52-8f64-4a8e-9d1e-0c7b2f0e5a11"}
	require.NoError(t, createCart(db, &anonymous))
	again := models.Cart{AnonymousCartUUID: anonymous.AnonymousCartUUID}
	require.NoError(t, createCart(db, &again))
	assert.Equal(t, anonymous.ID, again.ID)
	assert.NotEqual(t, first.ID, anonymous.ID)

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
