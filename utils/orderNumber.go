package utils

import (
	"fmt"
	"github.com/google/uuid"
	"strings"
	"time"
)

// 訂單編號格式: ORD-<unix毫秒>-<6位大寫十六進位>
func NewOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), strings.ToUpper(suffix))
}
