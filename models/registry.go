package models

// 需要AutoMigrate的所有資料表
func All() []interface{} {
	return []interface{}{
		&User{},
		&LoginToken{},
		&Category{},
		&Product{},
		&Order{},
		&Cart{},
		&CartItem{},
		&WishlistItem{},
		&Setting{},
		&ContactMessage{},
	}
}
