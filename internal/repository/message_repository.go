package repository

import (
	"context"

	"github.com/marketchat/backend/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	MarkRead(ctx context.Context, conversationKey, recipientUID string) (int64, error)
	CountActive(ctx context.Context, conversationKey string) (int64, error)
	// ListPage returns one page of active messages, newest first.
	ListPage(ctx context.Context, conversationKey string, offset, limit int) ([]model.Message, error)
	// ListByParticipant returns every active message where uid is sender or
	// recipient, newest first. The aggregator folds this into summaries.
	ListByParticipant(ctx context.Context, uid string) ([]model.Message, error)
	MarkDeleted(ctx context.Context, messageID uint64, senderUID string) (int64, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationKey, recipientUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_key = ? AND recipient_uid = ? AND is_read = ? AND status = ?",
			conversationKey, recipientUID, false, model.MessageStatusActive).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) CountActive(ctx context.Context, conversationKey string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_key = ? AND status = ?", conversationKey, model.MessageStatusActive).
		Count(&cnt).Error
	return cnt, err
}

func (r *messageRepository) ListPage(ctx context.Context, conversationKey string, offset, limit int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_key = ? AND status = ?", conversationKey, model.MessageStatusActive).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) ListByParticipant(ctx context.Context, uid string) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("(sender_uid = ? OR recipient_uid = ?) AND status = ?", uid, uid, model.MessageStatusActive).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) MarkDeleted(ctx context.Context, messageID uint64, senderUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND sender_uid = ? AND status = ?", messageID, senderUID, model.MessageStatusActive).
		Update("status", model.MessageStatusDeleted)
	return res.RowsAffected, res.Error
}
