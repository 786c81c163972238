package chat

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/ws"
)

// Engine 是消息分发引擎:先落库再路由,发送方的保存确认无条件下发,
// 接收方不可达只是一种路由结果,由持久化历史兜底。
type Engine struct {
	db       *gorm.DB
	reg      *ws.Registry
	notifier *Notifier
}

func NewEngine(db *gorm.DB, reg *ws.Registry) *Engine {
	return &Engine{db: db, reg: reg, notifier: NewNotifier(db, reg)}
}

// Connected 登记新连接:同一用户的旧连接被顶替并关闭(last-connect-wins),
// 在线标记落库,向所有连接广播上线事件。
func (e *Engine) Connected(c *ws.Client) {
	if old := e.reg.Register(c); old != nil {
		old.Close()
	}
	if err := e.db.Model(&models.User{}).Where("id = ?", c.UserID).Update("is_online", true).Error; err != nil {
		log.Warn().Err(err).Uint("user_id", c.UserID).Msg("persist online flag")
	}
	e.reg.Broadcast(event("userOnline", M{"userId": c.UserID, "isOnline": true}))
	log.Info().Uint("user_id", c.UserID).Str("conn_id", c.ID).Msg("ws connected")
}

// Disconnected 注销连接。若该用户已被更新的连接顶替,这里什么都不做:
// 旧连接的断开不能清掉新映射,也不能把用户标成离线。
func (e *Engine) Disconnected(c *ws.Client) {
	if !e.reg.Unregister(c) {
		return
	}
	now := time.Now()
	if err := e.db.Model(&models.User{}).Where("id = ?", c.UserID).
		Updates(map[string]interface{}{"is_online": false, "last_seen_at": &now}).Error; err != nil {
		log.Warn().Err(err).Uint("user_id", c.UserID).Msg("persist offline flag")
	}
	e.reg.Broadcast(event("userOnline", M{"userId": c.UserID, "isOnline": false}))
	log.Info().Uint("user_id", c.UserID).Str("conn_id", c.ID).Msg("ws disconnected")
}

// HandleEvent 解析入站事件并分发。操作者身份一律以连接的认证身份为准,
// 不信任载荷里的用户字段。
func (e *Engine) HandleEvent(c *ws.Client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		log.Debug().Err(err).Uint("user_id", c.UserID).Msg("malformed inbound event")
		return
	}
	switch in.Type {
	case "sendMessage":
		e.handleSend(c, in)
	case "typing":
		e.Typing(c.UserID, in.ChatID, in.IsGroup, false)
	case "stopTyping":
		e.Typing(c.UserID, in.ChatID, in.IsGroup, true)
	case "messageDelivered":
		e.reportIfError(c, e.MarkDelivered(in.MessageID))
	case "messageSeen":
		e.reportIfError(c, e.MarkSeen(in.MessageID))
	case "markChatAsRead":
		e.reportIfError(c, e.MarkChatAsRead(c.UserID, in.ChatID, in.IsGroup))
	case "deleteMessage":
		e.reportIfError(c, e.DeleteMessage(in.MessageID, c.UserID, in.DeleteForEveryone))
	case "pinMessage":
		e.reportIfError(c, e.PinMessage(in.MessageID, in.IsPinned))
	case "addReaction":
		e.reportIfError(c, e.AddReaction(in.MessageID, c.UserID, in.Emoji))
	case "removeReaction":
		e.reportIfError(c, e.RemoveReaction(in.MessageID, c.UserID, in.Emoji))
	default:
		log.Debug().Str("type", in.Type).Uint("user_id", c.UserID).Msg("unknown inbound event")
	}
}

func (e *Engine) handleSend(c *ws.Client, in inbound) {
	var (
		dto *MessageDTO
		err error
	)
	switch {
	case in.GroupID != nil:
		dto, err = e.SendGroup(c.UserID, *in.GroupID, in.Content, in.ReplyToID)
	case in.ReceiverID != nil:
		dto, err = e.SendDirect(c.UserID, *in.ReceiverID, in.Content, in.ReplyToID)
	default:
		err = ErrNoTarget
	}
	if err != nil {
		log.Error().Err(err).Uint("user_id", c.UserID).Msg("send message")
		c.Send(event("messageError", M{"error": "failed to send message", "details": err.Error()}))
		if in.AckID != "" {
			c.Send(event("ack", M{"ackId": in.AckID, "success": false, "error": err.Error()}))
		}
		return
	}
	if in.AckID != "" {
		c.Send(event("ack", M{"ackId": in.AckID, "success": true, "messageId": dto.ID, "message": dto}))
	}
}

func (e *Engine) reportIfError(c *ws.Client, err error) {
	if err == nil {
		return
	}
	log.Warn().Err(err).Uint("user_id", c.UserID).Msg("inbound event failed")
	c.Send(event("messageError", M{"error": err.Error()}))
}

// loadDTO 取回带完整关系展开的消息。落库成功后回读失败是罕见情况,
// 降级为只含主键的载荷而不是让发送失败。
func (e *Engine) loadDTO(id uint) *MessageDTO {
	var m models.Message
	err := e.db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender").Preload("Reactions").First(&m, id).Error
	if err != nil {
		log.Warn().Err(err).Uint("message_id", id).Msg("reload message")
		return &MessageDTO{ID: id, Reactions: []ReactionDTO{}}
	}
	return MessageToDTO(&m)
}

// participants 解析消息的参与者集合:群成员,或私聊双方。
func (e *Engine) participants(m *models.Message) []uint {
	if m.GroupID != nil {
		ids, err := e.groupMemberIDs(*m.GroupID)
		if err != nil {
			log.Warn().Err(err).Uint("group_id", *m.GroupID).Msg("resolve group members")
			return nil
		}
		return ids
	}
	ids := []uint{m.SenderID}
	if m.ReceiverID != nil && *m.ReceiverID != m.SenderID {
		ids = append(ids, *m.ReceiverID)
	}
	return ids
}

func (e *Engine) groupMemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	err := e.db.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Pluck("user_id", &ids).Error
	return ids, err
}

func (e *Engine) pushUnreadDirect(c *ws.Client, viewerID, peerID uint) {
	n, err := UnreadDirect(e.db, viewerID, peerID)
	if err != nil {
		log.Warn().Err(err).Uint("viewer_id", viewerID).Uint("peer_id", peerID).Msg("unread count")
		return
	}
	c.Send(event("unreadCountUpdate", M{"chatId": peerID, "isGroup": false, "unreadCount": n}))
}

func (e *Engine) pushUnreadGroup(c *ws.Client, viewerID, groupID uint) {
	n, err := UnreadGroup(e.db, viewerID, groupID)
	if err != nil {
		log.Warn().Err(err).Uint("viewer_id", viewerID).Uint("group_id", groupID).Msg("unread count")
		return
	}
	c.Send(event("unreadCountUpdate", M{"chatId": groupID, "isGroup": true, "unreadCount": n}))
}
