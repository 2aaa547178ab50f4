package models

import "gorm.io/gorm"

const (
	SettingGroupGeneral  = "general"
	SettingGroupStore    = "store"
	SettingGroupShipping = "shipping"
	SettingGroupSecurity = "security"
)

const (
	SettingStoreName             = "store_name"
	SettingStoreEmail            = "store_email"
	SettingStorePhone            = "store_phone"
	SettingStoreAddress          = "store_address"
	SettingCurrency              = "currency"
	SettingShippingFlatRate      = "shipping_flat_rate"
	SettingFreeShippingThreshold = "free_shipping_threshold"
	SettingTaxRate               = "tax_rate"
	SettingLowStockThreshold     = "low_stock_threshold"
	SettingSessionTimeoutHours   = "security.session_timeout_hours"
	SettingMaxLoginAttempts      = "security.max_login_attempts"
)

type Setting struct {
	gorm.Model
	Key   string `gorm:"column:setting_key;size:100;not null;uniqueIndex" json:"key"`
	Value string `gorm:"type:text" json:"value"`
	Group string `gorm:"column:setting_group;size:50;not null;default:general;index" json:"group"`
}
