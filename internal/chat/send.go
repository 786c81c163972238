package chat

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/metrics"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// SendDirect 处理私聊发送:落库、路由给接收方(若在线)、给发送方下发
// 保存确认、为接收方创建通知。自聊(receiver == sender)只走确认分支。
func (e *Engine) SendDirect(senderID, receiverID uint, content string, replyToID *uint) (*MessageDTO, error) {
	if receiverID != senderID {
		var count int64
		if err := e.db.Model(&models.User{}).Where("id = ?", receiverID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrUserNotFound
		}
	}
	msg := models.Message{Content: content, SenderID: senderID, ReceiverID: &receiverID, ReplyToID: replyToID}
	if err := e.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues("direct").Inc()
	dto := e.loadDTO(msg.ID)

	// 先消息、再未读数、最后刷新信号,客户端可假定计数已含这条消息
	if receiverID != senderID {
		if rc, ok := e.reg.Resolve(receiverID); ok {
			rc.Send(event("newMessage", M{"message": dto}))
			e.pushUnreadDirect(rc, receiverID, senderID)
			rc.Send(event("refreshRecentChats", nil))
		}
	}

	// 保存确认走发送方自己的传输会话,与接收方是否可达无关
	if sc, ok := e.reg.Resolve(senderID); ok {
		sc.Send(event("messageSaved", M{"message": dto}))
	}

	if receiverID != senderID {
		title := "New message"
		if dto.SenderName != "" {
			title = "New message from " + dto.SenderName
		}
		e.notifier.Notify(receiverID, "message", title, preview(content), fmt.Sprintf("/chat/%d", senderID))
	}
	return dto, nil
}

// SendGroup 处理群聊发送:落库、给发送方确认、逐个路由给其他在线成员、
// 为每个非发送方成员创建通知(无论是否在线),单个成员失败互不影响。
func (e *Engine) SendGroup(senderID, groupID uint, content string, replyToID *uint) (*MessageDTO, error) {
	var group models.Group
	if err := e.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	msg := models.Message{Content: content, SenderID: senderID, GroupID: &groupID, ReplyToID: replyToID}
	if err := e.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues("group").Inc()
	dto := e.loadDTO(msg.ID)

	if sc, ok := e.reg.Resolve(senderID); ok {
		sc.Send(event("messageSaved", M{"message": dto}))
	}

	members, err := e.groupMemberIDs(groupID)
	if err != nil {
		// 消息已落库,成员解析失败只影响本次路由,离线历史兜底
		log.Warn().Err(err).Uint("group_id", groupID).Msg("resolve group members")
		return dto, nil
	}
	for _, uid := range members {
		if uid == senderID {
			continue
		}
		if mc, ok := e.reg.Resolve(uid); ok {
			mc.Send(event("newMessage", M{"message": dto}))
			e.pushUnreadGroup(mc, uid, groupID)
			mc.Send(event("refreshRecentChats", nil))
		}
	}
	for _, uid := range members {
		if uid == senderID {
			continue
		}
		e.notifier.Notify(uid, "group_message", "New message in "+group.Name, preview(content), fmt.Sprintf("/groups/%d", groupID))
	}
	return dto, nil
}

// Typing 转发打字指示,不落库、无投递保证,接收方不在线就静默丢弃。
func (e *Engine) Typing(userID, chatID uint, isGroup, stopped bool) {
	typ := "userTyping"
	if stopped {
		typ = "userStoppedTyping"
	}
	payload := event(typ, M{"userId": userID, "chatId": chatID, "isGroup": isGroup})
	if !isGroup {
		e.reg.SendTo(chatID, payload)
		return
	}
	members, err := e.groupMemberIDs(chatID)
	if err != nil {
		log.Debug().Err(err).Uint("group_id", chatID).Msg("typing fanout")
		return
	}
	for _, uid := range members {
		if uid != userID {
			e.reg.SendTo(uid, payload)
		}
	}
}

// preview 截断通知正文,完整内容由消息历史提供。
func preview(content string) string {
	const max = 120
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}
