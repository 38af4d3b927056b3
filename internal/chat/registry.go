package chat

import (
	"sync"
	"time"
)

// Channel is the surface the registry and rooms need to push an encoded
// event frame to one connection. Enqueue must not block; it reports false
// when the frame was dropped (closed or saturated connection).
type Channel interface {
	ConnID() string
	Enqueue(frame []byte) bool
}

// Record is one live connection for one user.
type Record struct {
	UID         string
	Channel     Channel
	ConnectedAt time.Time
}

// Registry tracks which users currently hold a live connection. It is
// process-local on purpose: direct notifications only reach users connected
// to this instance, the persisted store stays the source of truth.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]Record
	nowFunc func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:  make(map[string]Record),
		nowFunc: time.Now,
	}
}

// Register records ch as uid's live connection. A prior connection for the
// same uid is replaced (last connection wins) and returned so the caller
// can close it.
func (r *Registry) Register(uid string, ch Channel) (replaced Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byUser[uid]; ok && prev.Channel.ConnID() != ch.ConnID() {
		replaced = prev.Channel
	}
	r.byUser[uid] = Record{UID: uid, Channel: ch, ConnectedAt: r.nowFunc()}
	return replaced
}

// Unregister removes uid's record only if it still belongs to connID, so a
// stale connection tearing down cannot evict its replacement. Removing an
// absent entry is a no-op.
func (r *Registry) Unregister(uid, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byUser[uid]; ok && rec.Channel.ConnID() == connID {
		delete(r.byUser, uid)
	}
}

func (r *Registry) IsOnline(uid string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[uid]
	return ok
}

// Lookup returns the channel for uid, or nil when offline.
func (r *Registry) Lookup(uid string) Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.byUser[uid]; ok {
		return rec.Channel
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
