package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	IsOnline     bool   `gorm:"not null;default:false"`
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Group struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	OwnerID   uint   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type GroupMember struct {
	GroupID   uint   `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint   `gorm:"primaryKey;autoIncrement:false"`
	Role      string `gorm:"size:32;not null;default:member"`
	CreatedAt time.Time
}

// Message 要么是私聊(ReceiverID 非空)要么是群聊(GroupID 非空),
// 自聊是 ReceiverID == SenderID 的退化情形。
type Message struct {
	ID          uint   `gorm:"primaryKey"`
	Content     string `gorm:"type:text"`
	SenderID    uint   `gorm:"index;not null"`
	ReceiverID  *uint  `gorm:"index"`
	GroupID     *uint  `gorm:"index"`
	ReplyToID   *uint
	DeliveredAt *time.Time
	SeenAt      *time.Time
	Deleted     bool   `gorm:"not null;default:false"`
	DeletedFor  []uint `gorm:"serializer:json"`
	Pinned      bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time

	Sender    *User      `gorm:"foreignKey:SenderID"`
	ReplyTo   *Message   `gorm:"foreignKey:ReplyToID"`
	Reactions []Reaction `gorm:"foreignKey:MessageID"`
}

type Reaction struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID uint   `gorm:"uniqueIndex:idx_reaction_triple;not null"`
	UserID    uint   `gorm:"uniqueIndex:idx_reaction_triple;not null"`
	Emoji     string `gorm:"uniqueIndex:idx_reaction_triple;size:32;not null"`
	CreatedAt time.Time
}

type Notification struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Type      string `gorm:"size:32;not null"`
	Title     string `gorm:"size:255;not null"`
	Content   string `gorm:"type:text"`
	Link      string `gorm:"size:255"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
