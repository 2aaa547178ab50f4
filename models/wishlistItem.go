package models

import "gorm.io/gorm"

type WishlistItem struct {
	gorm.Model
	UserID    uint `gorm:"not null;uniqueIndex:idx_wishlist_user_product"`
	ProductID uint `gorm:"not null;uniqueIndex:idx_wishlist_user_product"`
	Product   Product
}
