package chat

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// MarkDelivered 记录单条消息的送达时间并通知原发送方。
func (e *Engine) MarkDelivered(messageID uint) error {
	return e.markStatus(messageID, "delivered")
}

// MarkSeen 记录单条消息的已读时间并通知原发送方。
func (e *Engine) MarkSeen(messageID uint) error {
	return e.markStatus(messageID, "seen")
}

func (e *Engine) markStatus(messageID uint, status string) error {
	var msg models.Message
	if err := e.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	now := time.Now()
	col := "delivered_at"
	if status == "seen" {
		col = "seen_at"
	}
	if err := e.db.Model(&msg).Update(col, &now).Error; err != nil {
		return err
	}
	e.reg.SendTo(msg.SenderID, event("messageStatusUpdate", M{"messageId": msg.ID, "status": status, "timestamp": now}))
	return nil
}

// MarkChatAsRead 批量把会话里对方发来的未读消息置为已读,
// 逐条通知各消息的原发送方,并给 viewer 自己的连接推送重新计算的未读数。
func (e *Engine) MarkChatAsRead(viewerID, chatID uint, isGroup bool) error {
	q := e.db.Where("seen_at IS NULL AND deleted = ?", false).Where("sender_id <> ?", viewerID)
	if isGroup {
		q = q.Where("group_id = ?", chatID)
	} else {
		q = q.Where("sender_id = ? AND receiver_id = ?", chatID, viewerID)
	}
	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return err
	}
	if len(msgs) > 0 {
		now := time.Now()
		ids := make([]uint, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.ID)
		}
		if err := e.db.Model(&models.Message{}).Where("id IN ?", ids).Update("seen_at", &now).Error; err != nil {
			return err
		}
		for _, m := range msgs {
			e.reg.SendTo(m.SenderID, event("messageStatusUpdate", M{"messageId": m.ID, "status": "seen", "timestamp": now}))
		}
	}
	if vc, ok := e.reg.Resolve(viewerID); ok {
		if isGroup {
			e.pushUnreadGroup(vc, viewerID, chatID)
		} else {
			e.pushUnreadDirect(vc, viewerID, chatID)
		}
	}
	return nil
}

// DeleteMessage 删除消息。deleteForEveryone 置全局删除标记并向所有连接
// 广播删除事件(沿用源实现的粗粒度广播,不精确计算参与者);
// 否则只把请求者加进本消息的隐藏列表,不做任何广播。
func (e *Engine) DeleteMessage(messageID, userID uint, forEveryone bool) error {
	var msg models.Message
	if err := e.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if forEveryone {
		if err := e.db.Model(&msg).Update("deleted", true).Error; err != nil {
			return err
		}
		e.reg.Broadcast(event("messageDeleted", M{"messageId": msg.ID}))
		return nil
	}
	for _, uid := range msg.DeletedFor {
		if uid == userID {
			return nil
		}
	}
	msg.DeletedFor = append(msg.DeletedFor, userID)
	return e.db.Model(&msg).Update("deleted_for", msg.DeletedFor).Error
}

// PinMessage 更新置顶标记,并向会话参与者(群成员或私聊双方)中
// 当前在线的连接下发置顶事件。
func (e *Engine) PinMessage(messageID uint, pinned bool) error {
	var msg models.Message
	if err := e.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if err := e.db.Model(&msg).Update("pinned", pinned).Error; err != nil {
		return err
	}
	payload := event("messagePinned", M{"messageId": msg.ID, "isPinned": pinned})
	for _, uid := range e.participants(&msg) {
		e.reg.SendTo(uid, payload)
	}
	return nil
}
