package model

import "time"

const (
	MessageStatusActive  = "active"
	MessageStatusDeleted = "deleted"
)

// Message is append-only: content never changes after creation, only
// is_read and status are mutated. Deletion is a status flip, not a row delete.
type Message struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationKey string    `gorm:"column:conversation_key;size:260;index" json:"conversationId"`
	SenderUID       string    `gorm:"column:sender_uid;size:128;index" json:"senderId"`
	RecipientUID    string    `gorm:"column:recipient_uid;size:128;index" json:"receiverId"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	IsRead          bool      `gorm:"column:is_read;not null;default:false" json:"isRead"`
	RelatedItemID   *uint64   `gorm:"column:related_item_id" json:"relatedItem,omitempty"`
	RelatedItemType string    `gorm:"column:related_item_type;size:32" json:"relatedItemType,omitempty"`
	Status          string    `gorm:"size:16;not null;default:active" json:"-"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
