package models

import "github.com/shopspring/decimal"

// 訂單商品快照，以JSON存於orders.items
type OrderItem struct {
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	ImageURL  string          `json:"imageUrl"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}
