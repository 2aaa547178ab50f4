package handlers

import (
	"dentalshop/config"
	"dentalshop/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"strconv"
)

type storeSettings map[string]string

// 讀取所有設定，資料庫沒有的使用預設值
func loadSettings(db *gorm.DB) (storeSettings, error) {
	settings := storeSettings{}
	for _, setting := range config.DefaultSettings {
		settings[setting.Key] = setting.Value
	}

	var rows []models.Setting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

func (s storeSettings) Decimal(key string) decimal.Decimal {
	value, err := decimal.NewFromString(s[key])
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

func (s storeSettings) Int(key string, fallback int) int {
	return s.IntMin(key, fallback, 1)
}

// 小於min或無法解析時回傳fallback
func (s storeSettings) IntMin(key string, fallback, min int) int {
	value, err := strconv.Atoi(s[key])
	if err != nil || value < min {
		return fallback
	}
	return value
}

func defaultSettingGroup(key string) (string, bool) {
	for _, setting := range config.DefaultSettings {
		if setting.Key == key {
			return setting.Group, true
		}
	}
	return "", false
}
