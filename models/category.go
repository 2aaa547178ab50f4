package models

import "gorm.io/gorm"

type Category struct {
	gorm.Model
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	ImageURL    string    `json:"imageUrl"`
	SortOrder   int       `gorm:"not null;default:0" json:"sortOrder"`
	Products    []Product `json:"products,omitempty"`
}
