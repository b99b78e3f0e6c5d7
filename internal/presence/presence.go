package presence

import (
	"sync"
	"time"
)

// Tracker maps authenticated users to their live socket connections.
// A user may hold several connections (multiple tabs/devices); they are
// online while at least one connection remains. State is process-local
// and ephemeral: a restart drops everything, which is acceptable for
// best-effort presence.
type Tracker struct {
	mu       sync.RWMutex
	conns    map[string]map[string]struct{} // userID -> set of connection ids
	owner    map[string]string              // connection id -> userID
	lastSeen map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		conns:    make(map[string]map[string]struct{}),
		owner:    make(map[string]string),
		lastSeen: make(map[string]time.Time),
	}
}

// Join registers a connection for a user and reports whether it was the
// user's first live connection (the online transition).
func (t *Tracker) Join(userID, connID string) (first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		t.conns[userID] = set
	}
	first = len(set) == 0
	set[connID] = struct{}{}
	t.owner[connID] = userID
	t.lastSeen[userID] = time.Now()
	return first
}

// Leave removes a connection and reports the owning user and whether it
// was their last connection (the offline transition). userID is empty
// for connections that never joined.
func (t *Tracker) Leave(connID string) (userID string, last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok := t.owner[connID]
	if !ok {
		return "", false
	}
	delete(t.owner, connID)

	set := t.conns[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(t.conns, userID)
		t.lastSeen[userID] = time.Now()
		return userID, true
	}
	return userID, false
}

// IsOnline reports whether the user has at least one live connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns[userID]) > 0
}

// ConnectionsFor returns the user's live connection ids.
func (t *Tracker) ConnectionsFor(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.conns[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// OnlineUsers returns the ids of every user with a live connection.
func (t *Tracker) OnlineUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.conns))
	for id := range t.conns {
		out = append(out, id)
	}
	return out
}

// LastSeen returns when the user was last connected. ok is false for
// users this process has never seen.
func (t *Tracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.lastSeen[userID]
	return ts, ok
}
