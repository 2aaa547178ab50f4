package utils

import (
	"fmt"
	"gorm.io/gorm"
	"strings"
)

// 轉為小寫ASCII，非英數字元以-連接
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "item"
	}
	return slug
}

// 產生不重複的slug，已刪除的資料也算在內，excludeID為本身的ID
func UniqueSlug(db *gorm.DB, model interface{}, base string, excludeID uint) (string, error) {
	slug := base
	for i := 2; ; i++ {
		var count int64
		query := db.Unscoped().Model(model).Where("slug = ?", slug)
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		if err := query.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
