package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// 依流程排序的訂單狀態
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

type ShippingAddress struct {
	Line1      string `json:"line1" binding:"required,max=255"`
	Line2      string `json:"line2" binding:"max=255"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postalCode" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,max=100"`
}

type Order struct {
	gorm.Model
	OrderNumber     string          `gorm:"size:40;not null;uniqueIndex" json:"orderNumber"`
	UserID          *uint           `gorm:"index" json:"userId"`
	User            *User           `json:"-"`
	CustomerName    string          `gorm:"size:100;not null" json:"customerName"`
	CustomerEmail   string          `gorm:"size:255;not null;index" json:"customerEmail"`
	CustomerPhone   string          `gorm:"size:50" json:"customerPhone"`
	ShippingAddress ShippingAddress `gorm:"type:text;serializer:json" json:"shippingAddress"`
	Items           []OrderItem     `gorm:"type:text;serializer:json" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	ShippingFee     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shippingFee"`
	Tax             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Status          string          `gorm:"size:20;not null;index" json:"status"`
	PaymentMethod   string          `gorm:"size:20;not null" json:"paymentMethod"`
	PaymentStatus   string          `gorm:"size:20;not null" json:"paymentStatus"`
	Notes           string          `gorm:"type:text" json:"notes"`
}

func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsValidPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// 檢查訂單狀態是否可由from變更為to
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// 計入營收的訂單: 未取消且未退款
func (o Order) CountsAsRevenue() bool {
	return o.Status != OrderStatusCancelled && o.PaymentStatus != PaymentStatusRefunded
}
