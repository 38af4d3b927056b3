package chat

import (
	"sync"
	"time"
)

// TypingTracker holds ephemeral typing state per (conversation, user).
// Nothing here is persisted. A typing burst that is never explicitly
// stopped expires after the TTL, so a crashed client cannot leave a
// conversation stuck in "typing" (clients historically forgot to send
// the stop signal on abnormal exit).
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[typingKey]*typingEntry
	expired func(conversationKey, uid string)
}

type typingKey struct {
	conversation string
	uid          string
}

// typingEntry holds the live timer plus a generation counter bumped on
// every Start. A timer callback that raced a restart sees a newer
// generation and stands down instead of expiring the fresh burst.
type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

// NewTypingTracker builds a tracker with the given TTL. expired is invoked
// from a timer goroutine whenever a typing entry outlives the TTL without
// an explicit Stop; it must be safe for concurrent use.
func NewTypingTracker(ttl time.Duration, expired func(conversationKey, uid string)) *TypingTracker {
	if ttl <= 0 {
		ttl = 6 * time.Second
	}
	return &TypingTracker{
		ttl:     ttl,
		entries: make(map[typingKey]*typingEntry),
		expired: expired,
	}
}

// Start marks uid as typing in the conversation and arms a fresh expiry
// timer. Repeated starts extend the burst.
func (t *TypingTracker) Start(conversationKey, uid string) {
	k := typingKey{conversation: conversationKey, uid: uid}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[k]
	if !ok {
		e = &typingEntry{}
		t.entries[k] = e
	} else {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		cur, live := t.entries[k]
		fired := live && cur.gen == gen
		if fired {
			delete(t.entries, k)
		}
		t.mu.Unlock()
		if fired && t.expired != nil {
			t.expired(k.conversation, k.uid)
		}
	})
}

// Stop clears uid's typing state. Stopping an absent entry is a no-op and
// suppresses the expiry callback.
func (t *TypingTracker) Stop(conversationKey, uid string) {
	k := typingKey{conversation: conversationKey, uid: uid}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[k]; ok {
		e.timer.Stop()
		delete(t.entries, k)
	}
}

// IsTyping reports whether uid currently has a live typing entry.
func (t *TypingTracker) IsTyping(conversationKey, uid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[typingKey{conversation: conversationKey, uid: uid}]
	return ok
}

// StopAll clears every typing entry held by uid, returning the affected
// conversation keys. Called on disconnect.
func (t *TypingTracker) StopAll(uid string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []string
	for k, e := range t.entries {
		if k.uid == uid {
			e.timer.Stop()
			delete(t.entries, k)
			keys = append(keys, k.conversation)
		}
	}
	return keys
}
