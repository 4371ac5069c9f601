// Package presence tracks which users have a live connection.
//
// Each user maps to exactly one registered connection (the latest to connect)
// and to a broadcast group holding every connection they currently have open.
// Mutations are expected from a single dispatcher goroutine; reads may come
// from anywhere.
package presence

import (
	"slices"
	"sync"
)

// Table maps user ids to connection handles of type C.
type Table[C comparable] struct {
	mu     sync.RWMutex
	latest map[string]C
	groups map[string]map[C]struct{}
	owners map[C]string
}

func NewTable[C comparable]() *Table[C] {
	return &Table[C]{
		latest: make(map[string]C),
		groups: make(map[string]map[C]struct{}),
		owners: make(map[C]string),
	}
}

// Connect registers conn as userID's current connection and adds it to the
// user's broadcast group. Anonymous connections (empty userID) are ignored
// and Connect reports false.
func (t *Table[C]) Connect(userID string, conn C) bool {
	if userID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest[userID] = conn
	g, ok := t.groups[userID]
	if !ok {
		g = make(map[C]struct{})
		t.groups[userID] = g
	}
	g[conn] = struct{}{}
	t.owners[conn] = userID
	return true
}

// Disconnect drops conn from its user's broadcast group. The user's table
// entry is removed only when conn is the registered connection, so an older
// socket closing late cannot evict a newer one. It returns the user whose
// entry was removed.
func (t *Table[C]) Disconnect(conn C) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok := t.owners[conn]
	if !ok {
		return "", false
	}
	delete(t.owners, conn)
	if g := t.groups[userID]; g != nil {
		delete(g, conn)
		if len(g) == 0 {
			delete(t.groups, userID)
		}
	}

	if current, ok := t.latest[userID]; !ok || current != conn {
		return "", false
	}
	delete(t.latest, userID)
	return userID, true
}

// Lookup returns userID's registered connection.
func (t *Table[C]) Lookup(userID string) (C, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.latest[userID]
	return c, ok
}

// Group returns every open connection of userID.
func (t *Table[C]) Group(userID string) []C {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g := t.groups[userID]
	out := make([]C, 0, len(g))
	for c := range g {
		out = append(out, c)
	}
	return out
}

// Online returns the ids with a table entry, sorted.
func (t *Table[C]) Online() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.latest))
	for id := range t.latest {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (t *Table[C]) IsOnline(userID string) bool {
	_, ok := t.Lookup(userID)
	return ok
}
