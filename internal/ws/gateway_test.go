package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marketchat/backend/internal/chat"
	"github.com/marketchat/backend/internal/model"
	"github.com/marketchat/backend/internal/repository"
	"github.com/marketchat/backend/internal/service"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Message{}, &model.Notification{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	users := []model.User{
		{ID: "u1", Name: "Alice", Role: model.RoleBuyer},
		{ID: "u2", Name: "Bob", Role: model.RoleSeller},
		{ID: "u3", Name: "Carol", Role: model.RoleSeller},
	}
	if err := db.Create(&users).Error; err != nil {
		t.Fatalf("seed users: %v", err)
	}
	return db
}

func newTestHub(t *testing.T, typingTTL time.Duration) (*Hub, service.ChatService, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	notiRepo := repository.NewNotificationRepository(db)
	svc := service.NewChatService(msgRepo, userRepo)
	noti := service.NewNotificationService(notiRepo)
	return NewHub(svc, noti, typingTTL, zerolog.Nop()), svc, db
}

func connectClient(h *Hub, uid, name string) *Client {
	c := newClient(h, nil, &model.User{ID: uid, Name: name}, 16)
	h.connect(c)
	return c
}

func frameOf(t *testing.T, c *Client) (string, json.RawMessage) {
	t.Helper()
	select {
	case frame := <-c.send:
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("bad frame %s: %v", frame, err)
		}
		return env.Event, env.Data
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return "", nil
	}
}

func expectEvent(t *testing.T, c *Client, event string) json.RawMessage {
	t.Helper()
	got, data := frameOf(t, c)
	if got != event {
		t.Fatalf("got event %q, want %q (data %s)", got, event, data)
	}
	return data
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func send(h *Hub, c *Client, event string, data any) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(envelope{Event: event, Data: raw})
	h.dispatch(c, frame)
}

func TestJoinConversationMarksUnreadRead(t *testing.T) {
	h, svc, db := newTestHub(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Append(ctx, "u2", "u1", fmt.Sprintf("m%d", i), nil, ""); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	u1 := connectClient(h, "u1", "Alice")
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})

	data := expectEvent(t, u1, evJoinedConversation)
	var joined joinedConversationData
	if err := json.Unmarshal(data, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.ConversationID != chat.ConversationKey("u1", "u2") || joined.OtherUserID != "u2" {
		t.Fatalf("joined = %+v", joined)
	}

	var unread int64
	if err := db.Model(&model.Message{}).
		Where("recipient_uid = ? AND is_read = ?", "u1", false).
		Count(&unread).Error; err != nil {
		t.Fatal(err)
	}
	if unread != 0 {
		t.Fatalf("%d messages still unread after join", unread)
	}
}

func TestJoinUnknownUser(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)
	u1 := connectClient(h, "u1", "Alice")

	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "ghost"})
	data := expectEvent(t, u1, evError)
	var e errorData
	_ = json.Unmarshal(data, &e)
	if e.Message != "user not found" {
		t.Fatalf("error message %q", e.Message)
	}
}

func TestSendMessageScenario(t *testing.T) {
	h, _, db := newTestHub(t, time.Hour)

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob")

	// sender opens the conversation; recipient is online but elsewhere
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)

	send(h, u1, evSendMessage, sendMessagePayload{ReceiverID: "u2", Content: "Hello"})

	// room broadcast reaches the sender with the server-assigned id
	data := expectEvent(t, u1, evNewMessage)
	var nm messageData
	if err := json.Unmarshal(data, &nm); err != nil {
		t.Fatal(err)
	}
	if nm.ID == 0 || nm.Content != "Hello" || nm.SenderUID != "u1" || nm.RecipientUID != "u2" {
		t.Fatalf("new_message = %+v", nm)
	}
	if nm.ConversationKey != chat.ConversationKey("u1", "u2") {
		t.Fatalf("conversation key %q", nm.ConversationKey)
	}
	if nm.IsRead {
		t.Fatal("fresh message must be unread")
	}

	data = expectEvent(t, u1, evMessageSent)
	var sent messageSentData
	_ = json.Unmarshal(data, &sent)
	if sent.MessageID != nm.ID || sent.ConversationID != nm.ConversationKey {
		t.Fatalf("message_sent = %+v", sent)
	}

	// the out-of-room recipient gets the lightweight notification
	data = expectEvent(t, u2, evMessageNotification)
	var notif messageNotificationData
	_ = json.Unmarshal(data, &notif)
	if notif.Content != "Hello" || notif.SenderID != "u1" || notif.MessageID != nm.ID {
		t.Fatalf("message_notification = %+v", notif)
	}

	// and a persisted alert for later
	var count int64
	if err := db.Model(&model.Notification{}).
		Where("user_uid = ? AND message_id = ?", "u2", nm.ID).
		Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("%d persisted notifications, want 1", count)
	}
}

func TestSendMessageRecipientInRoomSkipsNotification(t *testing.T) {
	h, _, db := newTestHub(t, time.Hour)

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob")
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)
	send(h, u2, evJoinConversation, joinConversationPayload{OtherUserID: "u1"})
	expectEvent(t, u2, evJoinedConversation)

	send(h, u1, evSendMessage, sendMessagePayload{ReceiverID: "u2", Content: "hey"})
	expectEvent(t, u1, evNewMessage)
	expectEvent(t, u1, evMessageSent)

	// in-room recipient sees the full message, not a notification
	expectEvent(t, u2, evNewMessage)
	expectSilence(t, u2)

	var count int64
	if err := db.Model(&model.Notification{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("%d persisted notifications for an in-room delivery", count)
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	h, _, db := newTestHub(t, time.Hour)
	u1 := connectClient(h, "u1", "Alice")

	send(h, u1, evSendMessage, sendMessagePayload{ReceiverID: "u2", Content: "   "})
	expectEvent(t, u1, evError)

	var count int64
	if err := db.Model(&model.Message{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("rejected send stored %d rows", count)
	}
}

func TestTypingRelayExcludesSender(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)
	key := chat.ConversationKey("u1", "u2")

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob")
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)
	send(h, u2, evJoinConversation, joinConversationPayload{OtherUserID: "u1"})
	expectEvent(t, u2, evJoinedConversation)

	send(h, u1, evTypingStart, conversationPayload{ConversationID: key})
	data := expectEvent(t, u2, evUserTyping)
	var typ typingData
	_ = json.Unmarshal(data, &typ)
	if typ.UserID != "u1" || typ.ConversationID != key {
		t.Fatalf("user_typing = %+v", typ)
	}
	expectSilence(t, u1)

	send(h, u1, evTypingStop, conversationPayload{ConversationID: key})
	expectEvent(t, u2, evUserStoppedTyping)
}

func TestTypingDroppedWhenPeerNotInRoom(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)
	key := chat.ConversationKey("u1", "u2")

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob") // online, never joined the room
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)

	send(h, u1, evTypingStart, conversationPayload{ConversationID: key})

	// best-effort only: nothing reaches the absent peer, nothing is queued
	expectSilence(t, u2)
}

func TestTypingExpiryBroadcastsStop(t *testing.T) {
	h, _, _ := newTestHub(t, 30*time.Millisecond)
	key := chat.ConversationKey("u1", "u2")

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob")
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)
	send(h, u2, evJoinConversation, joinConversationPayload{OtherUserID: "u1"})
	expectEvent(t, u2, evJoinedConversation)

	send(h, u1, evTypingStart, conversationPayload{ConversationID: key})
	expectEvent(t, u2, evUserTyping)

	// no explicit stop: the TTL clears the stale indicator
	data := expectEvent(t, u2, evUserStoppedTyping)
	var typ typingData
	_ = json.Unmarshal(data, &typ)
	if typ.UserID != "u1" {
		t.Fatalf("user_stopped_typing = %+v", typ)
	}
}

func TestMarkAsReadBroadcast(t *testing.T) {
	h, svc, _ := newTestHub(t, time.Hour)
	key := chat.ConversationKey("u1", "u2")

	if _, err := svc.Append(context.Background(), "u2", "u1", "unread", nil, ""); err != nil {
		t.Fatal(err)
	}

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob")
	send(h, u2, evJoinConversation, joinConversationPayload{OtherUserID: "u1"})
	expectEvent(t, u2, evJoinedConversation)

	send(h, u1, evMarkAsRead, conversationPayload{ConversationID: key})
	data := expectEvent(t, u2, evMessagesRead)
	var mr messagesReadData
	_ = json.Unmarshal(data, &mr)
	if mr.ReadBy != "u1" || mr.ConversationID != key {
		t.Fatalf("messages_read = %+v", mr)
	}
	expectSilence(t, u1)
}

func TestMarkAsReadRejectsOutsider(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)
	u3 := connectClient(h, "u3", "Carol")

	send(h, u3, evMarkAsRead, conversationPayload{ConversationID: chat.ConversationKey("u1", "u2")})
	expectEvent(t, u3, evError)
}

func TestHistoryAndConversationList(t *testing.T) {
	h, svc, _ := newTestHub(t, time.Hour)
	ctx := context.Background()

	for _, c := range []string{"m1", "m2", "m3", "m4", "m5"} {
		if _, err := svc.Append(ctx, "u1", "u2", c, nil, ""); err != nil {
			t.Fatal(err)
		}
	}

	u2 := connectClient(h, "u2", "Bob")
	send(h, u2, evGetHistory, historyPayload{OtherUserID: "u1", Page: 1, Limit: 2})
	data := expectEvent(t, u2, evConversationHistory)
	var hist historyData
	if err := json.Unmarshal(data, &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 2 || hist.Messages[0].Content != "m4" || hist.Messages[1].Content != "m5" {
		t.Fatalf("history page 1 = %+v", hist.Messages)
	}
	if hist.Pagination.Total != 5 || hist.Pagination.TotalPages != 3 {
		t.Fatalf("pagination = %+v", hist.Pagination)
	}

	send(h, u2, evGetConversations, struct{}{})
	data = expectEvent(t, u2, evConversationsList)
	var sums []service.ConversationSummary
	if err := json.Unmarshal(data, &sums); err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 || sums[0].UnreadCount != 5 || sums[0].OtherUser.ID != "u1" {
		t.Fatalf("conversations_list = %+v", sums)
	}
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)

	u1 := connectClient(h, "u1", "Alice")
	u2 := newClient(h, nil, &model.User{ID: "u2", Name: "Bob"}, 1)
	h.connect(u2)

	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)
	send(h, u2, evJoinConversation, joinConversationPayload{OtherUserID: "u1"})
	expectEvent(t, u2, evJoinedConversation)

	// u2 never drains its queue: the first broadcast fills it, the second
	// one cannot be delivered and must cost u2 the connection
	send(h, u1, evSendMessage, sendMessagePayload{ReceiverID: "u2", Content: "first"})
	expectEvent(t, u1, evNewMessage)
	expectEvent(t, u1, evMessageSent)

	send(h, u1, evSendMessage, sendMessagePayload{ReceiverID: "u2", Content: "second"})
	expectEvent(t, u1, evNewMessage)
	expectEvent(t, u1, evMessageSent)

	if h.IsOnline("u2") {
		t.Fatal("saturated consumer still registered")
	}
	if u2.Enqueue([]byte(`{}`)) {
		t.Fatal("saturated consumer still accepts frames")
	}
	key := chat.ConversationKey("u1", "u2")
	if h.rooms.Contains(key, u2) {
		t.Fatal("saturated consumer still in the room")
	}
}

func TestSlowNotificationRecipientIsDisconnected(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)

	u1 := connectClient(h, "u1", "Alice")
	u2 := newClient(h, nil, &model.User{ID: "u2", Name: "Bob"}, 1)
	h.connect(u2)

	// u2 is online but not in the room, with a queue already full
	if !u2.Enqueue([]byte(`{}`)) {
		t.Fatal("priming frame rejected")
	}

	send(h, u1, evSendMessage, sendMessagePayload{ReceiverID: "u2", Content: "hi"})
	expectEvent(t, u1, evMessageSent)

	if h.IsOnline("u2") {
		t.Fatal("recipient that cannot take the notification still registered")
	}
}

func TestMalformedAndUnknownEvents(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)
	u1 := connectClient(h, "u1", "Alice")

	h.dispatch(u1, []byte("not json"))
	expectEvent(t, u1, evError)

	send(h, u1, "warp_drive", struct{}{})
	expectEvent(t, u1, evError)

	send(h, u1, evJoinConversation, struct{}{})
	expectEvent(t, u1, evError)
}

func TestReconnectReplacesConnection(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)

	first := connectClient(h, "u1", "Alice")
	second := connectClient(h, "u1", "Alice")

	if !h.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}
	if first.Enqueue([]byte(`{}`)) {
		t.Fatal("replaced connection still accepts frames")
	}
	if !second.Enqueue([]byte(`{}`)) {
		t.Fatal("new connection rejected a frame")
	}

	h.disconnect(second)
	if h.IsOnline("u1") {
		t.Fatal("u1 should be offline after disconnect")
	}
}

func TestDisconnectDropsRoomsAndTyping(t *testing.T) {
	h, _, _ := newTestHub(t, time.Hour)
	key := chat.ConversationKey("u1", "u2")

	u1 := connectClient(h, "u1", "Alice")
	u2 := connectClient(h, "u2", "Bob")
	send(h, u1, evJoinConversation, joinConversationPayload{OtherUserID: "u2"})
	expectEvent(t, u1, evJoinedConversation)
	send(h, u2, evJoinConversation, joinConversationPayload{OtherUserID: "u1"})
	expectEvent(t, u2, evJoinedConversation)

	send(h, u1, evTypingStart, conversationPayload{ConversationID: key})
	expectEvent(t, u2, evUserTyping)

	// abnormal drop clears the typing indicator for the peer
	h.disconnect(u1)
	expectEvent(t, u2, evUserStoppedTyping)
	if h.IsOnline("u1") {
		t.Fatal("u1 still registered after disconnect")
	}
}
