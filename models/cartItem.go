package models

import "gorm.io/gorm"

type CartItem struct {
	gorm.Model
	CartID    uint `gorm:"index;not null"`
	ProductID uint `gorm:"index;not null"`
	Product   Product
	Quantity  int `gorm:"not null"`
}
