package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	gorm.Model
	Name             string              `gorm:"size:255;not null" json:"name"`
	Slug             string              `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	SKU              string              `gorm:"size:100;not null;uniqueIndex" json:"sku"`
	Description      string              `gorm:"type:text" json:"description"`
	ShortDescription string              `gorm:"size:500" json:"shortDescription"`
	Brand            string              `gorm:"size:100;index" json:"brand"`
	Price            decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	CompareAtPrice   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"compareAtPrice"`
	StockQuantity    int                 `gorm:"not null;default:0" json:"stockQuantity"`
	CategoryID       *uint               `gorm:"index" json:"categoryId"`
	Category         *Category           `json:"category,omitempty"`
	ImageURL         string              `json:"imageUrl"`
	Images           []string            `gorm:"type:text;serializer:json" json:"images"`
	Specifications   map[string]string   `gorm:"type:text;serializer:json" json:"specifications"`
	Featured         bool                `gorm:"not null;default:false;index" json:"featured"`
	Active           bool                `gorm:"not null;index" json:"active"`
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}
