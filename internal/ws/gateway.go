package ws

import (
	"encoding/json"
	"errors"

	"github.com/marketchat/backend/internal/chat"
	"github.com/marketchat/backend/internal/service"
)

// dispatch decodes one inbound frame and routes it to the event handler.
// Every failure is reported only to the requesting client; nothing here
// is ever broadcast on error.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		h.sendError(c, "invalid payload")
		return
	}
	switch env.Event {
	case evJoinConversation:
		h.handleJoin(c, env.Data)
	case evSendMessage:
		h.handleSend(c, env.Data)
	case evTypingStart:
		h.handleTyping(c, env.Data, true)
	case evTypingStop:
		h.handleTyping(c, env.Data, false)
	case evMarkAsRead:
		h.handleMarkRead(c, env.Data)
	case evGetHistory:
		h.handleHistory(c, env.Data)
	case evGetConversations:
		h.handleConversations(c)
	default:
		h.sendError(c, "unknown event: "+env.Event)
	}
}

// handleJoin subscribes the client to the conversation room with the other
// user and, as a documented side effect, marks messages addressed to the
// joiner as read: opening a conversation is the read receipt.
func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var p joinConversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OtherUserID == "" {
		h.sendError(c, "otherUserId is required")
		return
	}
	if p.OtherUserID == c.UID() {
		h.sendError(c, "cannot open a conversation with yourself")
		return
	}
	if _, err := h.svc.ResolveUser(c.ctx, p.OtherUserID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.sendError(c, "user not found")
			return
		}
		h.serverError(c, err, "resolve user")
		return
	}

	key := chat.ConversationKey(c.UID(), p.OtherUserID)
	h.rooms.Join(key, c)

	if _, err := h.svc.MarkRead(c.ctx, key, c.UID()); err != nil {
		h.serverError(c, err, "mark read on join")
		return
	}
	if h.notifications != nil {
		_ = h.notifications.MarkByConversation(c.ctx, c.UID(), key)
	}
	c.sendEvent(evJoinedConversation, joinedConversationData{
		ConversationID: key,
		OtherUserID:    p.OtherUserID,
	})
}

func (h *Hub) handleSend(c *Client, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		h.sendError(c, "receiverId is required")
		return
	}
	msg, err := h.svc.Append(c.ctx, c.UID(), p.ReceiverID, p.Content, p.RelatedItem, p.RelatedItemType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent),
			errors.Is(err, service.ErrSelfConversation):
			h.sendError(c, err.Error())
		case errors.Is(err, service.ErrUnknownRecipient):
			h.sendError(c, "recipient not found")
		default:
			h.serverError(c, err, "append message")
		}
		return
	}

	// The full message goes to everyone in the room, sender included, so
	// the sender's UI picks up the server-assigned id and timestamp.
	h.broadcast(msg.ConversationKey, encode(evNewMessage, messageData{
		Message:    *msg,
		SenderName: c.user.Name,
	}), nil)

	c.sendEvent(evMessageSent, messageSentData{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationKey,
	})

	recipient := h.registry.Lookup(msg.RecipientUID)
	inRoom := recipient != nil && h.rooms.Contains(msg.ConversationKey, recipient)
	if recipient != nil && !inRoom {
		if !recipient.Enqueue(encode(evMessageNotification, messageNotificationData{
			ConversationID: msg.ConversationKey,
			MessageID:      msg.ID,
			SenderID:       msg.SenderUID,
			SenderName:     c.user.Name,
			Content:        msg.Content,
		})) {
			h.dropStalled(recipient)
		}
	}
	if !inRoom && h.notifications != nil {
		h.notifications.NotifyMessage(c.ctx, msg, c.user.Name)
	}
}

// handleTyping relays a typing signal to the other members of the room.
// Nothing is queued or persisted: a peer not currently in the room never
// sees the signal.
func (h *Hub) handleTyping(c *Client, data json.RawMessage, start bool) {
	var p conversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		h.sendError(c, "conversationId is required")
		return
	}
	if !chat.KeyHasParticipant(p.ConversationID, c.UID()) {
		h.sendError(c, "not a participant")
		return
	}
	event := evUserStoppedTyping
	if start {
		h.typing.Start(p.ConversationID, c.UID())
		event = evUserTyping
	} else {
		h.typing.Stop(p.ConversationID, c.UID())
	}
	h.broadcast(p.ConversationID, encode(event, typingData{
		ConversationID: p.ConversationID,
		UserID:         c.UID(),
		UserName:       c.user.Name,
	}), c)
}

func (h *Hub) handleMarkRead(c *Client, data json.RawMessage) {
	var p conversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		h.sendError(c, "conversationId is required")
		return
	}
	if _, err := h.svc.MarkRead(c.ctx, p.ConversationID, c.UID()); err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			h.sendError(c, "not a participant")
			return
		}
		h.serverError(c, err, "mark read")
		return
	}
	if h.notifications != nil {
		_ = h.notifications.MarkByConversation(c.ctx, c.UID(), p.ConversationID)
	}
	h.broadcast(p.ConversationID, encode(evMessagesRead, messagesReadData{
		ConversationID: p.ConversationID,
		ReadBy:         c.UID(),
	}), c)
}

func (h *Hub) handleHistory(c *Client, data json.RawMessage) {
	var p historyPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OtherUserID == "" {
		h.sendError(c, "otherUserId is required")
		return
	}
	key := chat.ConversationKey(c.UID(), p.OtherUserID)
	msgs, pg, err := h.svc.History(c.ctx, key, p.Page, p.Limit)
	if err != nil {
		h.serverError(c, err, "history")
		return
	}
	c.sendEvent(evConversationHistory, historyData{
		ConversationID: key,
		Messages:       msgs,
		Pagination:     pg,
	})
}

func (h *Hub) handleConversations(c *Client) {
	sums, err := h.svc.ConversationsFor(c.ctx, c.UID())
	if err != nil {
		h.serverError(c, err, "list conversations")
		return
	}
	c.sendEvent(evConversationsList, sums)
}

func (h *Hub) sendError(c *Client, msg string) {
	c.sendEvent(evError, errorData{Message: msg})
}

// serverError logs the cause server-side and hands the client a short,
// detail-free message.
func (h *Hub) serverError(c *Client, err error, op string) {
	h.log.Error().Err(err).Str("uid", c.UID()).Str("op", op).Msg("gateway operation failed")
	h.sendError(c, "internal error")
}
