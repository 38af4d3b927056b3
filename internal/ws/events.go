package ws

import (
	"encoding/json"

	"github.com/marketchat/backend/internal/model"
	"github.com/marketchat/backend/internal/service"
)

// Client-to-server event names.
const (
	evJoinConversation = "join_conversation"
	evSendMessage      = "send_message"
	evTypingStart      = "typing_start"
	evTypingStop       = "typing_stop"
	evMarkAsRead       = "mark_as_read"
	evGetHistory       = "get_conversation_history"
	evGetConversations = "get_conversations"
)

// Server-to-client event names.
const (
	evJoinedConversation  = "joined_conversation"
	evNewMessage          = "new_message"
	evMessageSent         = "message_sent"
	evMessageNotification = "message_notification"
	evUserTyping          = "user_typing"
	evUserStoppedTyping   = "user_stopped_typing"
	evMessagesRead        = "messages_read"
	evConversationHistory = "conversation_history"
	evConversationsList   = "conversations_list"
	evError               = "error"
)

// envelope is the wire frame in both directions: a tag plus a payload whose
// shape depends on the tag. Inbound payloads are decoded strictly per event
// and rejected before any side effect runs.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinConversationPayload struct {
	OtherUserID string `json:"otherUserId"`
}

type sendMessagePayload struct {
	ReceiverID      string  `json:"receiverId"`
	Content         string  `json:"content"`
	RelatedItem     *uint64 `json:"relatedItem"`
	RelatedItemType string  `json:"relatedItemType"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type historyPayload struct {
	OtherUserID string `json:"otherUserId"`
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
}

type joinedConversationData struct {
	ConversationID string `json:"conversationId"`
	OtherUserID    string `json:"otherUserId"`
}

type messageData struct {
	model.Message
	SenderName string `json:"senderName,omitempty"`
}

type messageSentData struct {
	MessageID      uint64 `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type messageNotificationData struct {
	ConversationID string `json:"conversationId"`
	MessageID      uint64 `json:"messageId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName,omitempty"`
	Content        string `json:"content"`
}

type typingData struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName,omitempty"`
}

type messagesReadData struct {
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

type historyData struct {
	ConversationID string             `json:"conversationId"`
	Messages       []model.Message    `json:"messages"`
	Pagination     service.Pagination `json:"pagination"`
}

type errorData struct {
	Message string `json:"message"`
}

// encode marshals an outbound frame. Payload types here are all
// marshal-safe, so an error is a programming bug; it degrades to an
// empty error frame rather than panicking the hub.
func encode(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte(`{}`)
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return []byte(`{"event":"error","data":{}}`)
	}
	return frame
}
