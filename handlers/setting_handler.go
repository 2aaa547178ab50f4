package handlers

import (
	"bytes"
	"dentalshop/config"
	"dentalshop/models"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// 前台可讀取的設定
var publicSettingKeys = []string{
	models.SettingStoreName,
	models.SettingStoreEmail,
	models.SettingStorePhone,
	models.SettingStoreAddress,
	models.SettingCurrency,
	models.SettingShippingFlatRate,
	models.SettingFreeShippingThreshold,
	models.SettingTaxRate,
}

// 必須為非負數的設定
var numericSettingKeys = map[string]bool{
	models.SettingShippingFlatRate:      true,
	models.SettingFreeShippingThreshold: true,
	models.SettingTaxRate:               true,
}

type intRange struct {
	min, max int
}

// 必須為整數的設定與允許範圍，max為0表示沒有上限
var integerSettingRanges = map[string]intRange{
	models.SettingLowStockThreshold:   {min: 0},
	models.SettingSessionTimeoutHours: {min: 1, max: 720},
	models.SettingMaxLoginAttempts:    {min: 1, max: 20},
}

func (r intRange) contains(value int) bool {
	return value >= r.min && (r.max == 0 || value <= r.max)
}

func (r intRange) message() string {
	if r.max == 0 {
		return fmt.Sprintf("必須為不小於%d的整數", r.min)
	}
	return fmt.Sprintf("必須為%d-%d的整數", r.min, r.max)
}

func isValidSettingGroup(group string) bool {
	switch group {
	case models.SettingGroupGeneral, models.SettingGroupStore, models.SettingGroupShipping, models.SettingGroupSecurity:
		return true
	}
	return false
}

// 依群組列出設定，資料庫沒有的使用預設值
func listSettings(db *gorm.DB, group string) (map[string]string, error) {
	groups := map[string]string{}
	values := map[string]string{}
	for _, setting := range config.DefaultSettings {
		groups[setting.Key] = setting.Group
		values[setting.Key] = setting.Value
	}

	var rows []models.Setting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		groups[row.Key] = row.Group
		values[row.Key] = row.Value
	}

	out := map[string]string{}
	for key, value := range values {
		if group == "" || groups[key] == group {
			out[key] = value
		}
	}
	return out, nil
}

// 新增或更新設定
func upsertSettings(tx *gorm.DB, settings []models.Setting) error {
	for _, setting := range settings {
		var existing models.Setting
		err := tx.Unscoped().Where("setting_key = ?", setting.Key).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&setting).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			err := tx.Unscoped().Model(&existing).Updates(map[string]interface{}{
				"value":         setting.Value,
				"setting_group": setting.Group,
				"deleted_at":    nil,
			}).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// 接受 {"settings": {key: value}}、{key: value} 或 [{key, value, group}]
func decodeSettings(body []byte) ([]models.Setting, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	if body[0] == '[' {
		var list []struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
			Group string          `json:"group"`
		}
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		settings := make([]models.Setting, 0, len(list))
		for _, item := range list {
			settings = append(settings, models.Setting{Key: item.Key, Value: rawSettingValue(item.Value), Group: item.Group})
		}
		return settings, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(body, &object); err != nil {
		return nil, err
	}
	if wrapped, ok := object["settings"]; ok {
		object = nil
		if err := json.Unmarshal(wrapped, &object); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	settings := make([]models.Setting, 0, len(keys))
	for _, key := range keys {
		settings = append(settings, models.Setting{Key: key, Value: rawSettingValue(object[key])})
	}
	return settings, nil
}

// 字串取其內容，數字與布林值保留原文
func rawSettingValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func validateSettings(settings []models.Setting) []FieldError {
	var details []FieldError
	for i := range settings {
		setting := &settings[i]
		setting.Key = strings.TrimSpace(setting.Key)
		setting.Value = strings.TrimSpace(setting.Value)

		if setting.Key == "" || len(setting.Key) > 100 {
			details = append(details, FieldError{Field: fmt.Sprintf("settings[%d].key", i), Message: "長度需為1-100"})
			continue
		}
		if setting.Group == "" {
			if group, ok := defaultSettingGroup(setting.Key); ok {
				setting.Group = group
			} else {
				setting.Group = models.SettingGroupGeneral
			}
		}
		if !isValidSettingGroup(setting.Group) {
			details = append(details, FieldError{Field: setting.Key, Message: "群組錯誤"})
		}
		if numericSettingKeys[setting.Key] {
			value, err := decimal.NewFromString(setting.Value)
			if err != nil || value.IsNegative() {
				details = append(details, FieldError{Field: setting.Key, Message: "必須為非負數"})
			}
		}
		if r, ok := integerSettingRanges[setting.Key]; ok {
			value, err := strconv.Atoi(setting.Value)
			if err != nil || !r.contains(value) {
				details = append(details, FieldError{Field: setting.Key, Message: r.message()})
			}
		}
	}
	return details
}

// 查詢所有設定
func GetSettingsHandler(c *gin.Context, db *gorm.DB) {
	group := c.Query("group")
	if group != "" && !isValidSettingGroup(group) {
		respondError(c, http.StatusBadRequest, "設定群組錯誤", fmt.Errorf("unknown group %q", group))
		return
	}

	settings, err := listSettings(db, group)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢設定失敗", err)
		return
	}
	respondData(c, http.StatusOK, "成功查詢設定", settings)
}

// 查詢前台公開設定
func GetPublicSettingsHandler(c *gin.Context, db *gorm.DB) {
	settings, err := loadSettings(db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢設定失敗", err)
		return
	}

	public := make(map[string]string, len(publicSettingKeys))
	for _, key := range publicSettingKeys {
		public[key] = settings[key]
	}
	respondData(c, http.StatusOK, "成功查詢設定", public)
}

// 更新設定
func UpdateSettingsHandler(c *gin.Context, db *gorm.DB, svc *Services) {
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "讀取請求資料錯誤", err)
		return
	}

	settings, err := decodeSettings(body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "請求資料格式錯誤", err)
		return
	}
	if len(settings) == 0 {
		respondDetails(c, "請求資料驗證失敗", []FieldError{{Field: "settings", Message: "至少需要1項"}})
		return
	}
	if details := validateSettings(settings); len(details) > 0 {
		respondDetails(c, "請求資料驗證失敗", details)
		return
	}

	if err := db.Transaction(func(tx *gorm.DB) error { return upsertSettings(tx, settings) }); err != nil {
		respondError(c, http.StatusInternalServerError, "更新設定失敗", err)
		return
	}
	svc.invalidateOverview(c.Request.Context())

	all, err := listSettings(db, "")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查詢設定失敗", err)
		return
	}
	respondData(c, http.StatusOK, "成功更新設定", all)
}
