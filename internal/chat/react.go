package chat

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// AddReaction 以 (messageId, userId, emoji) 为键做幂等 upsert,
// 重复添加不报错也不产生第二条记录,随后向参与者广播。
func (e *Engine) AddReaction(messageID, userID uint, emoji string) error {
	var msg models.Message
	if err := e.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	r := models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	if err := e.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
		return err
	}
	// 冲突时 Create 不回填主键,取回已存在的记录保证事件载荷一致
	var stored models.Reaction
	if err := e.db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).First(&stored).Error; err != nil {
		return err
	}
	dto := ReactionDTO{MessageID: stored.MessageID, UserID: stored.UserID, Emoji: stored.Emoji, CreatedAt: stored.CreatedAt}
	payload := event("reactionAdded", M{"messageId": messageID, "reaction": dto})
	for _, uid := range e.participants(&msg) {
		e.reg.SendTo(uid, payload)
	}
	return nil
}

// RemoveReaction 按同一组合键删除,三元组不存在时返回 NotFound,
// 此时不向任何人下发事件。
func (e *Engine) RemoveReaction(messageID, userID uint, emoji string) error {
	res := e.db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).Delete(&models.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReactionNotFound
	}
	var msg models.Message
	if err := e.db.First(&msg, messageID).Error; err == nil {
		payload := event("reactionRemoved", M{"messageId": messageID, "userId": userID, "emoji": emoji})
		for _, uid := range e.participants(&msg) {
			e.reg.SendTo(uid, payload)
		}
	}
	return nil
}
