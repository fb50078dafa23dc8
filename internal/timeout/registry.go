package timeout

import (
	"sync"
	"time"
)

// Registry holds the authoritative creation instant for every room that can
// still time out. Entries live only in process memory: the wall clock of this
// process is trusted over the persistence layer's, which can drift by tens of
// seconds. After a restart the reconciler falls back to persisted timestamps.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]time.Time
	now   func() time.Time
}

// NewRegistry creates an empty timeout registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int64]time.Time),
		now:   time.Now,
	}
}

// Register records the room's creation instant. Called exactly once, at the
// moment the room enters a pending state. Re-registering an already tracked
// room keeps the original instant.
func (r *Registry) Register(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; ok {
		return
	}
	r.rooms[roomID] = r.now()
}

// Unregister removes the room's entry. Idempotent; called by whichever path
// (approve, reject, cancel, timeout) reaches a non-pending state first.
func (r *Registry) Unregister(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}

// RegisteredAt returns the room's registration instant, if tracked.
func (r *Registry) RegisteredAt(roomID int64) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.rooms[roomID]
	return at, ok
}

// Elapsed returns how long the room has been registered.
func (r *Registry) Elapsed(roomID int64) (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.rooms[roomID]
	if !ok {
		return 0, false
	}
	return r.now().Sub(at), true
}

// Contains reports whether the room is tracked.
func (r *Registry) Contains(roomID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Len returns the number of tracked rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
