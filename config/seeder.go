package config

import (
	"dentalshop/models"
	"dentalshop/utils"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"log/slog"
)

var defaultCategories = []string{
	"Dental Chairs",
	"Handpieces",
	"Imaging",
	"Sterilization",
	"Instruments",
	"Consumables",
}

var DefaultSettings = []models.Setting{
	{Key: models.SettingStoreName, Value: "Dental Supply", Group: models.SettingGroupStore},
	{Key: models.SettingStoreEmail, Value: "", Group: models.SettingGroupStore},
	{Key: models.SettingStorePhone, Value: "", Group: models.SettingGroupStore},
	{Key: models.SettingStoreAddress, Value: "", Group: models.SettingGroupStore},
	{Key: models.SettingCurrency, Value: "USD", Group: models.SettingGroupGeneral},
	{Key: models.SettingShippingFlatRate, Value: "15.00", Group: models.SettingGroupShipping},
	{Key: models.SettingFreeShippingThreshold, Value: "500.00", Group: models.SettingGroupShipping},
	{Key: models.SettingTaxRate, Value: "0", Group: models.SettingGroupShipping},
	{Key: models.SettingLowStockThreshold, Value: "5", Group: models.SettingGroupGeneral},
	{Key: models.SettingSessionTimeoutHours, Value: "24", Group: models.SettingGroupSecurity},
	{Key: models.SettingMaxLoginAttempts, Value: "5", Group: models.SettingGroupSecurity},
}

// 寫入管理員、預設分類與預設設定，已存在的資料不覆蓋
func Seed(db *gorm.DB, config Config) error {
	if err := SeedAdmin(db, config.Auth); err != nil {
		return err
	}
	if err := SeedCategories(db); err != nil {
		return err
	}
	return SeedSettings(db)
}

func SeedAdmin(db *gorm.DB, auth AuthConfig) error {
	if auth.AdminEmail == "" || auth.AdminPassword == "" {
		slog.Warn("略過建立管理員: 未設定ADMIN_EMAIL或ADMIN_PASSWORD")
		return nil
	}

	var existing models.User
	err := db.Unscoped().Where("email = ?", auth.AdminEmail).First(&existing).Error
	if err == nil {
		slog.Info("管理員已存在", "email", auth.AdminEmail)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}

	hashed, err := utils.HashPassword(auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	admin := models.User{
		Name:          auth.AdminName,
		Email:         auth.AdminEmail,
		Password:      hashed,
		Role:          models.RoleAdmin,
		Status:        models.UserStatusActive,
		EmailVerified: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("已建立管理員", "email", admin.Email, "id", admin.ID)
	return nil
}

func SeedCategories(db *gorm.DB) error {
	for i, name := range defaultCategories {
		category := models.Category{
			Name:      name,
			Slug:      utils.Slugify(name),
			SortOrder: i,
		}
		result := db.Unscoped().Where("name = ?", name).FirstOrCreate(&category)
		if result.Error != nil {
			return fmt.Errorf("seed category %s: %w", name, result.Error)
		}
		if result.RowsAffected > 0 {
			slog.Info("已建立分類", "name", name)
		}
	}
	return nil
}

func SeedSettings(db *gorm.DB) error {
	for _, setting := range DefaultSettings {
		setting := setting
		if err := db.Where("setting_key = ?", setting.Key).FirstOrCreate(&setting).Error; err != nil {
			return fmt.Errorf("seed setting %s: %w", setting.Key, err)
		}
	}
	return nil
}
