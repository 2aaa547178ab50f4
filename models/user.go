package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"

	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

type User struct {
	gorm.Model
	Name                  string       `gorm:"size:100;not null" json:"name"`
	Email                 string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password              string       `gorm:"not null" json:"-"`
	Role                  string       `gorm:"size:20;not null;default:customer;index" json:"role"`
	Phone                 string       `gorm:"size:50" json:"phone"`
	ClinicName            string       `gorm:"size:255" json:"clinicName"`
	Address               string       `gorm:"type:text" json:"address"`
	Status                string       `gorm:"size:20;not null;default:active" json:"status"`
	EmailVerified         bool         `gorm:"not null;default:false" json:"emailVerified"`
	VerificationToken     string       `gorm:"size:64;index" json:"-"`
	VerificationExpiresAt *time.Time   `json:"-"`
	LastLoginAt           *time.Time   `json:"lastLoginAt"`
	Orders                []Order      `json:"-"`
	LoginTokens           []LoginToken `json:"-"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
