package chat

import (
	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// UnreadDirect 统计 viewer 在与 peer 私聊中的未读数:对方发出、未读、
// 未被全局删除。每次按需重算,不做缓存。自聊时 sender ≠ viewer 恒假,
// 计数为 0,不会重复计数。
func UnreadDirect(db *gorm.DB, viewerID, peerID uint) (int64, error) {
	var n int64
	err := db.Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ?", peerID, viewerID).
		Where("sender_id <> ?", viewerID).
		Where("seen_at IS NULL").
		Where("deleted = ?", false).
		Count(&n).Error
	return n, err
}

// UnreadGroup 统计 viewer 在群里的未读数,判定条件与私聊一致。
func UnreadGroup(db *gorm.DB, viewerID, groupID uint) (int64, error) {
	var n int64
	err := db.Model(&models.Message{}).
		Where("group_id = ?", groupID).
		Where("sender_id <> ?", viewerID).
		Where("seen_at IS NULL").
		Where("deleted = ?", false).
		Count(&n).Error
	return n, err
}
