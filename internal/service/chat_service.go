package service

import (
	"context"
	"errors"
	"strings"

	"github.com/marketchat/backend/internal/chat"
	"github.com/marketchat/backend/internal/model"
	"github.com/marketchat/backend/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyContent     = errors.New("message content is required")
	ErrUnknownRecipient = errors.New("recipient not found")
	ErrSelfConversation = errors.New("cannot message yourself")
	ErrNotParticipant   = errors.New("not a participant")
)

const (
	DefaultPageSize = 20
	maxPageSize     = 100
)

// ConversationSummary is derived on demand and never stored.
type ConversationSummary struct {
	ConversationKey string           `json:"conversationId"`
	LastMessage     model.Message    `json:"lastMessage"`
	UnreadCount     int64            `json:"unreadCount"`
	OtherUser       model.PublicUser `json:"otherUser"`
}

// Pagination describes one history page.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type ChatService interface {
	// Append validates and persists one message, deriving the conversation
	// key from the two participants.
	Append(ctx context.Context, senderUID, recipientUID, content string, relatedItemID *uint64, relatedItemType string) (*model.Message, error)
	// MarkRead flips is_read on every unread message in the conversation
	// addressed to recipientUID. Idempotent; returns the rows affected.
	MarkRead(ctx context.Context, conversationKey, recipientUID string) (int64, error)
	// History pages through a conversation newest-first, returning each
	// page in oldest-to-newest order. Page 1 holds the most recent messages.
	History(ctx context.Context, conversationKey string, page, pageSize int) ([]model.Message, Pagination, error)
	// ConversationsFor lists the caller's conversations with last message,
	// unread count and the other participant, most recent first.
	ConversationsFor(ctx context.Context, uid string) ([]ConversationSummary, error)
	DeleteMessage(ctx context.Context, messageID uint64, senderUID string) error
	ResolveUser(ctx context.Context, uid string) (*model.User, error)
}

type chatService struct {
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
}

func NewChatService(msgRepo repository.MessageRepository, userRepo repository.UserRepository) ChatService {
	return &chatService{msgRepo: msgRepo, userRepo: userRepo}
}

func (s *chatService) Append(ctx context.Context, senderUID, recipientUID, content string, relatedItemID *uint64, relatedItemType string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if senderUID == recipientUID {
		return nil, ErrSelfConversation
	}
	if _, err := s.userRepo.FindByID(ctx, recipientUID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownRecipient
		}
		return nil, err
	}
	msg := &model.Message{
		ConversationKey: chat.ConversationKey(senderUID, recipientUID),
		SenderUID:       senderUID,
		RecipientUID:    recipientUID,
		Content:         content,
		RelatedItemID:   relatedItemID,
		RelatedItemType: relatedItemType,
		Status:          model.MessageStatusActive,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *chatService) MarkRead(ctx context.Context, conversationKey, recipientUID string) (int64, error) {
	if !chat.KeyHasParticipant(conversationKey, recipientUID) {
		return 0, ErrNotParticipant
	}
	return s.msgRepo.MarkRead(ctx, conversationKey, recipientUID)
}

func (s *chatService) History(ctx context.Context, conversationKey string, page, pageSize int) ([]model.Message, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = DefaultPageSize
	}
	total, err := s.msgRepo.CountActive(ctx, conversationKey)
	if err != nil {
		return nil, Pagination{}, err
	}
	msgs, err := s.msgRepo.ListPage(ctx, conversationKey, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, Pagination{}, err
	}
	if msgs == nil {
		// an out-of-range page serializes as [] rather than null
		msgs = []model.Message{}
	}
	// Pages are fetched newest-first so page 1 always holds the latest
	// messages; each page is reversed for delivery in temporal order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	pg := Pagination{
		Page:       page,
		Limit:      pageSize,
		Total:      total,
		TotalPages: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	return msgs, pg, nil
}

func (s *chatService) ConversationsFor(ctx context.Context, uid string) ([]ConversationSummary, error) {
	msgs, err := s.msgRepo.ListByParticipant(ctx, uid)
	if err != nil {
		return nil, err
	}

	// msgs arrive newest-first, so the first message seen per key is the
	// last message of that conversation and overall order falls out for free.
	var order []string
	byKey := make(map[string]*ConversationSummary)
	for _, m := range msgs {
		sum, ok := byKey[m.ConversationKey]
		if !ok {
			sum = &ConversationSummary{
				ConversationKey: m.ConversationKey,
				LastMessage:     m,
			}
			byKey[m.ConversationKey] = sum
			order = append(order, m.ConversationKey)
		}
		if m.RecipientUID == uid && !m.IsRead {
			sum.UnreadCount++
		}
	}

	otherIDs := make([]string, 0, len(order))
	for _, key := range order {
		otherIDs = append(otherIDs, chat.OtherParticipant(key, uid))
	}
	users, err := s.userRepo.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(order))
	for _, key := range order {
		sum := byKey[key]
		if u, ok := users[chat.OtherParticipant(key, uid)]; ok {
			sum.OtherUser = u.Public()
		} else {
			sum.OtherUser = model.PublicUser{ID: chat.OtherParticipant(key, uid)}
		}
		out = append(out, *sum)
	}
	return out, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, messageID uint64, senderUID string) error {
	n, err := s.msgRepo.MarkDeleted(ctx, messageID, senderUID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *chatService) ResolveUser(ctx context.Context, uid string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}
