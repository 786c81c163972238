package service

import (
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/chat"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// ChatService 是同步查询面:历史消息、置顶、最近会话、通知。
// 查询失败一律向上返回错误,不降级成空结果掩盖故障。
type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

// DirectHistory 按 id 升序返回 viewer 与 peer 之间的私聊消息,
// 过滤全局删除和 viewer 自己隐藏的消息。viewer == peer 时即自聊。
func (s *ChatService) DirectHistory(viewerID, peerID uint, limit int) ([]*chat.MessageDTO, error) {
	q := s.db.Where("group_id IS NULL").Where("deleted = ?", false).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", viewerID, peerID, peerID, viewerID)
	return s.fetchHistory(q, viewerID, limit)
}

// GroupHistory 按 id 升序返回群聊消息。
func (s *ChatService) GroupHistory(viewerID, groupID uint, limit int) ([]*chat.MessageDTO, error) {
	q := s.db.Where("group_id = ?", groupID).Where("deleted = ?", false)
	return s.fetchHistory(q, viewerID, limit)
}

func (s *ChatService) fetchHistory(q *gorm.DB, viewerID uint, limit int) ([]*chat.MessageDTO, error) {
	var msgs []models.Message
	err := q.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").Preload("Reactions").
		Order("id desc").Limit(clampLimit(limit)).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	out := make([]*chat.MessageDTO, 0, len(msgs))
	for i := range msgs {
		if hiddenFor(&msgs[i], viewerID) {
			continue
		}
		out = append(out, chat.MessageToDTO(&msgs[i]))
	}
	return out, nil
}

func hiddenFor(m *models.Message, viewerID uint) bool {
	for _, uid := range m.DeletedFor {
		if uid == viewerID {
			return true
		}
	}
	return false
}

// PinnedDirect 返回私聊会话里的置顶消息。
func (s *ChatService) PinnedDirect(viewerID, peerID uint) ([]*chat.MessageDTO, error) {
	q := s.db.Where("group_id IS NULL").Where("pinned = ? AND deleted = ?", true, false).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", viewerID, peerID, peerID, viewerID)
	return s.fetchHistory(q, viewerID, 200)
}

// PinnedGroup 返回群聊里的置顶消息。
func (s *ChatService) PinnedGroup(viewerID, groupID uint) ([]*chat.MessageDTO, error) {
	q := s.db.Where("group_id = ?", groupID).Where("pinned = ? AND deleted = ?", true, false)
	return s.fetchHistory(q, viewerID, 200)
}

// ConversationDTO 是最近会话摘要:最后一条消息预览加按需计算的未读数。
type ConversationDTO struct {
	ChatID      uint             `json:"chatId"`
	IsGroup     bool             `json:"isGroup"`
	Name        string           `json:"name"`
	LastMessage *chat.MessageDTO `json:"lastMessage,omitempty"`
	UnreadCount int64            `json:"unreadCount"`
}

// RecentConversations 汇总 viewer 的私聊对端和所属群组,
// 按最后一条消息时间倒序。内网规模下直接扫最近消息折叠出对端集合。
func (s *ChatService) RecentConversations(viewerID uint) ([]ConversationDTO, error) {
	var msgs []models.Message
	err := s.db.Preload("Sender").Preload("Reactions").
		Where("group_id IS NULL").Where("deleted = ?", false).
		Where("sender_id = ? OR receiver_id = ?", viewerID, viewerID).
		Order("id desc").Limit(500).Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	out := make([]ConversationDTO, 0)
	seen := make(map[uint]struct{})
	peerIDs := make([]uint, 0)
	for i := range msgs {
		m := &msgs[i]
		if hiddenFor(m, viewerID) {
			continue
		}
		peer := m.SenderID
		if peer == viewerID && m.ReceiverID != nil {
			peer = *m.ReceiverID
		}
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		peerIDs = append(peerIDs, peer)
		n, err := chat.UnreadDirect(s.db, viewerID, peer)
		if err != nil {
			return nil, err
		}
		out = append(out, ConversationDTO{ChatID: peer, LastMessage: chat.MessageToDTO(m), UnreadCount: n})
	}

	usernames, err := s.resolveUsernames(peerIDs)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Name = usernames[out[i].ChatID]
	}

	var memberships []models.GroupMember
	if err := s.db.Where("user_id = ?", viewerID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	for _, mb := range memberships {
		var group models.Group
		if err := s.db.First(&group, mb.GroupID).Error; err != nil {
			return nil, err
		}
		conv := ConversationDTO{ChatID: group.ID, IsGroup: true, Name: group.Name}
		var last models.Message
		err := s.db.Preload("Sender").Preload("Reactions").
			Where("group_id = ?", group.ID).Where("deleted = ?", false).
			Order("id desc").First(&last).Error
		if err == nil {
			conv.LastMessage = chat.MessageToDTO(&last)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		n, err := chat.UnreadGroup(s.db, viewerID, group.ID)
		if err != nil {
			return nil, err
		}
		conv.UnreadCount = n
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].LastMessage, out[j].LastMessage
		if li == nil {
			return false
		}
		if lj == nil {
			return true
		}
		return li.CreatedAt.After(lj.CreatedAt)
	})
	return out, nil
}

// resolveUsernames 批量获取涉及的用户名。
func (s *ChatService) resolveUsernames(userIDs []uint) (map[uint]string, error) {
	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) == 0 {
		return usernames, nil
	}
	var users []models.User
	if err := s.db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	return usernames, nil
}

// Notifications 返回用户最近的通知,按时间倒序。
func (s *ChatService) Notifications(viewerID uint, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.Where("user_id = ?", viewerID).Order("id desc").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

// MarkNotificationRead 把单条通知置为已读,只允许本人操作。
func (s *ChatService) MarkNotificationRead(viewerID, id uint) error {
	res := s.db.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, viewerID).Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
