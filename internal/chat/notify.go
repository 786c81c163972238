package chat

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/metrics"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/ws"
)

// Notifier 落库通知并向在线用户推送实时事件。创建失败只记日志,
// 绝不影响触发它的主操作。
type Notifier struct {
	db  *gorm.DB
	reg *ws.Registry
}

func NewNotifier(db *gorm.DB, reg *ws.Registry) *Notifier {
	return &Notifier{db: db, reg: reg}
}

func (n *Notifier) Notify(userID uint, typ, title, content, link string) {
	rec := models.Notification{UserID: userID, Type: typ, Title: title, Content: content, Link: link}
	if err := n.db.Create(&rec).Error; err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Str("type", typ).Msg("create notification")
		return
	}
	metrics.NotificationsTotal.Inc()
	n.reg.SendTo(userID, event("newNotification", M{"type": typ, "title": title, "content": content}))
}
