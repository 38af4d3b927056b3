package chat

import "sync"

// Rooms tracks which channels are subscribed to which conversation key.
// A channel may sit in several rooms at once; membership is dropped as a
// whole when the connection goes away.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[Channel]struct{}
	joined  map[Channel]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[Channel]struct{}),
		joined:  make(map[Channel]map[string]struct{}),
	}
}

func (r *Rooms) Join(key string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[key] == nil {
		r.members[key] = make(map[Channel]struct{})
	}
	r.members[key][ch] = struct{}{}
	if r.joined[ch] == nil {
		r.joined[ch] = make(map[string]struct{})
	}
	r.joined[ch][key] = struct{}{}
}

func (r *Rooms) Leave(key string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(key, ch)
}

// LeaveAll drops every membership held by ch. Called on disconnect.
func (r *Rooms) LeaveAll(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.joined[ch] {
		r.leaveLocked(key, ch)
	}
}

func (r *Rooms) leaveLocked(key string, ch Channel) {
	if set, ok := r.members[key]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(r.members, key)
		}
	}
	if set, ok := r.joined[ch]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(r.joined, ch)
		}
	}
}

func (r *Rooms) Contains(key string, ch Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[key][ch]
	return ok
}

// Broadcast pushes frame to every member of the room, skipping except when
// non-nil. Returns how many channels accepted the frame along with the
// channels that refused it, so the caller can tear those down.
func (r *Rooms) Broadcast(key string, frame []byte, except Channel) (int, []Channel) {
	r.mu.RLock()
	targets := make([]Channel, 0, len(r.members[key]))
	for ch := range r.members[key] {
		if ch != except {
			targets = append(targets, ch)
		}
	}
	r.mu.RUnlock()

	n := 0
	var rejected []Channel
	for _, ch := range targets {
		if ch.Enqueue(frame) {
			n++
		} else {
			rejected = append(rejected, ch)
		}
	}
	return n, rejected
}
