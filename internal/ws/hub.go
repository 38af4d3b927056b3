package ws

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/marketchat/backend/internal/chat"
	"github.com/marketchat/backend/internal/service"
)

// Hub composes the connection registry, room membership, typing state and
// the chat service into the session gateway. It owns no global state:
// construct one per process and inject it where needed.
type Hub struct {
	registry      *chat.Registry
	rooms         *chat.Rooms
	typing        *chat.TypingTracker
	svc           service.ChatService
	notifications service.NotificationService
	log           zerolog.Logger
}

func NewHub(svc service.ChatService, notifications service.NotificationService, typingTTL time.Duration, log zerolog.Logger) *Hub {
	h := &Hub{
		registry:      chat.NewRegistry(),
		rooms:         chat.NewRooms(),
		svc:           svc,
		notifications: notifications,
		log:           log,
	}
	h.typing = chat.NewTypingTracker(typingTTL, h.typingExpired)
	return h
}

// connect registers the client, closing any previous connection held by the
// same user (last connection wins).
func (h *Hub) connect(c *Client) {
	if replaced := h.registry.Register(c.UID(), c); replaced != nil {
		if prev, ok := replaced.(*Client); ok {
			h.rooms.LeaveAll(prev)
			prev.close()
		}
		h.log.Debug().Str("uid", c.UID()).Msg("replaced existing connection")
	}
	h.log.Info().Str("uid", c.UID()).Str("conn_id", c.ConnID()).Msg("client connected")
}

// disconnect drops every trace of the client: room memberships, lingering
// typing bursts, the registry record. Message state is left untouched.
func (h *Hub) disconnect(c *Client) {
	c.close()
	h.rooms.LeaveAll(c)
	for _, key := range h.typing.StopAll(c.UID()) {
		h.broadcast(key, encode(evUserStoppedTyping, typingData{
			ConversationID: key,
			UserID:         c.UID(),
			UserName:       c.user.Name,
		}), c)
	}
	h.registry.Unregister(c.UID(), c.ConnID())
	h.log.Info().Str("uid", c.UID()).Str("conn_id", c.ConnID()).Msg("client disconnected")
}

// typingExpired fires from the tracker's TTL timer when a client never sent
// typing_stop. The stale indicator is cleared for everyone in the room.
func (h *Hub) typingExpired(conversationKey, uid string) {
	data := typingData{ConversationID: conversationKey, UserID: uid}
	except := h.registry.Lookup(uid)
	if c, ok := except.(*Client); ok {
		data.UserName = c.user.Name
	}
	h.broadcast(conversationKey, encode(evUserStoppedTyping, data), except)
	h.log.Debug().Str("conversation", conversationKey).Str("uid", uid).Msg("typing expired")
}

// broadcast fans frame out to the room and tears down any member whose send
// queue could not take it. A consumer that cannot keep up is disconnected
// rather than left with an undetectable gap in the stream.
func (h *Hub) broadcast(key string, frame []byte, except chat.Channel) int {
	n, rejected := h.rooms.Broadcast(key, frame, except)
	for _, ch := range rejected {
		h.dropStalled(ch)
	}
	return n
}

// dropStalled disconnects a channel whose send queue rejected a frame.
// Channels already mid-teardown are left alone.
func (h *Hub) dropStalled(ch chat.Channel) {
	c, ok := ch.(*Client)
	if !ok || c.closed() {
		return
	}
	h.log.Warn().Str("uid", c.UID()).Str("conn_id", c.ConnID()).Msg("send queue full, dropping connection")
	h.disconnect(c)
}

// IsOnline reports whether uid holds a live connection on this instance.
func (h *Hub) IsOnline(uid string) bool {
	return h.registry.IsOnline(uid)
}
