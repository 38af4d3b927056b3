package service

import (
	"context"

	"github.com/marketchat/backend/internal/model"
	"github.com/marketchat/backend/internal/repository"
)

type NotificationService interface {
	NotifyMessage(ctx context.Context, msg *model.Message, senderName string)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
	MarkByConversation(ctx context.Context, userUID, conversationKey string) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// NotifyMessage records a delivery alert for the recipient of msg.
// Best-effort: a failed insert never breaks the send path.
func (s *notificationService) NotifyMessage(ctx context.Context, msg *model.Message, senderName string) {
	if msg == nil || msg.RecipientUID == "" {
		return
	}
	key := msg.ConversationKey
	id := msg.ID
	n := &model.Notification{
		UserUID:         msg.RecipientUID,
		Type:            model.NotificationTypeMessage,
		Title:           senderName,
		Body:            msg.Content,
		ConversationKey: &key,
		MessageID:       &id,
	}
	_ = s.repo.Create(ctx, n)
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	return s.repo.MarkAllRead(ctx, userUID)
}

func (s *notificationService) MarkByConversation(ctx context.Context, userUID, conversationKey string) error {
	return s.repo.MarkByConversation(ctx, userUID, conversationKey)
}
