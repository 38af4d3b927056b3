package model

import "time"

const NotificationTypeMessage = "message"

type Notification struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserUID         string     `gorm:"column:user_uid;size:128;index;not null" json:"userId"`
	Type            string     `gorm:"column:type;size:64;not null" json:"type"`
	Title           string     `gorm:"column:title;size:255" json:"title"`
	Body            string     `gorm:"column:body;type:text" json:"body"`
	ConversationKey *string    `gorm:"column:conversation_key;size:260;index" json:"conversationId,omitempty"`
	MessageID       *uint64    `gorm:"column:message_id;index" json:"messageId,omitempty"`
	ReadAt          *time.Time `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}
