package models

import (
	"time"

	"gorm.io/gorm"
)

type LoginToken struct {
	gorm.Model
	Token          string    `gorm:"size:2048;not null" json:"-"`
	ExpirationTime time.Time `gorm:"index" json:"expiresAt"`
	UserID         uint      `gorm:"index" json:"userId"`
	Role           string    `json:"role"`
	UserAgent      string    `gorm:"size:255" json:"userAgent"`
	IP             string    `gorm:"size:64" json:"ip"`
}
