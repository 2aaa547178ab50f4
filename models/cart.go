package models

import "gorm.io/gorm"

// 會員購物車的AnonymousCartUUID為空，匿名購物車的UserID為0，兩者組成唯一的擁有者
type Cart struct {
	gorm.Model
	UserID            uint       `gorm:"uniqueIndex:idx_cart_owner"`
	AnonymousCartUUID string     `gorm:"size:36;uniqueIndex:idx_cart_owner"`
	CartItems         []CartItem `gorm:"foreignKey:CartID"`
}
