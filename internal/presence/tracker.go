package presence

import (
	"sync"
)

// Tracker records which user each connection belongs to and which room, if
// any, it is subscribed to. Presence is best-effort only: it feeds join/leave
// notifications and is never consulted by business logic.
type Tracker struct {
	mu          sync.RWMutex
	sessionUser map[string]string // connection id -> login id
	sessionRoom map[string]string // connection id -> room uuid
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessionUser: make(map[string]string),
		sessionRoom: make(map[string]string),
	}
}

// Track associates a connection with a user. Called on connect; anonymous
// connections are tracked with an empty login id.
func (t *Tracker) Track(connID, loginID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionUser[connID] = loginID
}

// MarkPresent records the room the connection subscribed to.
func (t *Tracker) MarkPresent(connID, roomUUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionRoom[connID] = roomUUID
}

// MarkAbsent clears the connection's room entry and returns the room it was
// in, if any.
func (t *Tracker) MarkAbsent(connID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	roomUUID, ok := t.sessionRoom[connID]
	if ok {
		delete(t.sessionRoom, connID)
	}
	return roomUUID, ok
}

// Remove drops both entries for a disconnected connection and returns what
// was tracked.
func (t *Tracker) Remove(connID string) (loginID, roomUUID string, inRoom bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loginID = t.sessionUser[connID]
	roomUUID, inRoom = t.sessionRoom[connID]
	delete(t.sessionUser, connID)
	delete(t.sessionRoom, connID)
	return loginID, roomUUID, inRoom
}

// UserFor returns the login id tracked for a connection.
func (t *Tracker) UserFor(connID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	loginID, ok := t.sessionUser[connID]
	return loginID, ok
}

// RoomFor returns the room uuid tracked for a connection.
func (t *Tracker) RoomFor(connID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roomUUID, ok := t.sessionRoom[connID]
	return roomUUID, ok
}

// IsOnline reports whether any connection is tracked for the login id.
func (t *Tracker) IsOnline(loginID string) bool {
	if loginID == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range t.sessionUser {
		if id == loginID {
			return true
		}
	}
	return false
}

// CountInRoom returns the number of connections subscribed to a room.
func (t *Tracker) CountInRoom(roomUUID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, r := range t.sessionRoom {
		if r == roomUUID {
			n++
		}
	}
	return n
}
