package handlers

import (
	"context"
	"dentalshop/cache"
	"dentalshop/config"
	"dentalshop/events"
	"dentalshop/jwt"
	"dentalshop/logger"
	"dentalshop/mail"
	"dentalshop/storage"
)

const overviewCacheKey = "analytics:overview"

// 處理請求時需要的外部服務
type Services struct {
	Config  config.Config
	Cache   *cache.Cache
	JWT     *jwt.Manager
	Mailer  mail.Mailer
	Storage storage.Disk
	Events  events.Publisher
}

// 寄送通知信，失敗只寫log不影響請求結果
func (s *Services) sendMail(ctx context.Context, msg mail.Message, err error) {
	log := logger.FromContext(ctx)
	if err != nil {
		log.Error("產生郵件內容失敗", "error", err)
		return
	}
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		log.Error("寄送郵件失敗", "subject", msg.Subject, "error", err)
	}
}

func (s *Services) publish(ctx context.Context, event events.OrderEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Error("發佈訂單事件失敗", "type", event.Type, "order_number", event.OrderNumber, "error", err)
	}
}

// 訂單或商品異動後清除統計快取
func (s *Services) invalidateOverview(ctx context.Context) {
	if err := s.Cache.Del(ctx, overviewCacheKey); err != nil {
		logger.FromContext(ctx).Warn("清除統計快取失敗", "error", err)
	}
}
