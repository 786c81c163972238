package chat

import (
	"encoding/json"
	"time"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// M 是出站事件的载荷字段集,编码时与 type 字段合并成单条 JSON。
type M map[string]interface{}

func event(typ string, fields M) []byte {
	m := M{"type": typ}
	for k, v := range fields {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return b
}

// inbound 覆盖所有入站事件的字段并按 type 分发,未用到的字段保持零值。
type inbound struct {
	Type              string `json:"type"`
	AckID             string `json:"ackId"`
	Content           string `json:"content"`
	SenderID          uint   `json:"senderId"`
	ReceiverID        *uint  `json:"receiverId"`
	GroupID           *uint  `json:"groupId"`
	ReplyToID         *uint  `json:"replyToId"`
	UserID            uint   `json:"userId"`
	ChatID            uint   `json:"chatId"`
	IsGroup           bool   `json:"isGroup"`
	MessageID         uint   `json:"messageId"`
	Emoji             string `json:"emoji"`
	DeleteForEveryone bool   `json:"deleteForEveryone"`
	IsPinned          bool   `json:"isPinned"`
}

type ReactionDTO struct {
	MessageID uint      `json:"messageId"`
	UserID    uint      `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageDTO 是消息的完整关系展开,客户端拿到后无需再发起查询。
type MessageDTO struct {
	ID          uint          `json:"id"`
	Content     string        `json:"content,omitempty"`
	SenderID    uint          `json:"senderId"`
	SenderName  string        `json:"senderName,omitempty"`
	ReceiverID  *uint         `json:"receiverId,omitempty"`
	GroupID     *uint         `json:"groupId,omitempty"`
	ReplyToID   *uint         `json:"replyToId,omitempty"`
	ReplyTo     *MessageDTO   `json:"replyTo,omitempty"`
	Reactions   []ReactionDTO `json:"reactions"`
	DeliveredAt *time.Time    `json:"deliveredAt,omitempty"`
	SeenAt      *time.Time    `json:"seenAt,omitempty"`
	IsPinned    bool          `json:"isPinned"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func MessageToDTO(m *models.Message) *MessageDTO {
	dto := &MessageDTO{
		ID:          m.ID,
		Content:     m.Content,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		GroupID:     m.GroupID,
		ReplyToID:   m.ReplyToID,
		Reactions:   make([]ReactionDTO, 0, len(m.Reactions)),
		DeliveredAt: m.DeliveredAt,
		SeenAt:      m.SeenAt,
		IsPinned:    m.Pinned,
		CreatedAt:   m.CreatedAt,
	}
	if m.Sender != nil {
		dto.SenderName = m.Sender.Username
	}
	if m.ReplyTo != nil {
		dto.ReplyTo = MessageToDTO(m.ReplyTo)
	}
	for _, r := range m.Reactions {
		dto.Reactions = append(dto.Reactions, ReactionDTO{MessageID: r.MessageID, UserID: r.UserID, Emoji: r.Emoji, CreatedAt: r.CreatedAt})
	}
	return dto
}
