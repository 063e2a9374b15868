// Package reconnect tracks per-identity reconnection callbacks: one
// disconnect callback that evicts a stale session when the same user
// connects again, and any number of rejoin callbacks that replay
// in-progress room state to a fresh session.
package reconnect

import "sync"

// Registration identifies one installed disconnect callback so that a
// graceful disconnect only removes its own registration, never one
// installed later by a reconnecting session.
type Registration struct {
	fn func()
}

type entry[S any] struct {
	disconnect *Registration
	rejoin     []func(S)
}

// Bus is a per-user callback registry. S is the session type handed to
// rejoin callbacks; the bus never inspects it.
type Bus[S any] struct {
	mu      sync.Mutex
	entries map[string]*entry[S]
}

func NewBus[S any]() *Bus[S] {
	return &Bus[S]{entries: make(map[string]*entry[S])}
}

// NotifyAndReplace fires the existing disconnect callback for userID
// exactly once, installs onEvict in its place, then replays all rejoin
// callbacks with the new session. Callbacks run outside the bus lock so
// they may re-enter the bus or take room locks.
func (b *Bus[S]) NotifyAndReplace(userID string, onEvict func(), sess S) *Registration {
	reg := &Registration{fn: onEvict}

	b.mu.Lock()
	e := b.entries[userID]
	if e == nil {
		e = &entry[S]{}
		b.entries[userID] = e
	}
	old := e.disconnect
	e.disconnect = reg
	rejoin := make([]func(S), len(e.rejoin))
	copy(rejoin, e.rejoin)
	b.mu.Unlock()

	if old != nil {
		old.fn()
	}
	for _, fn := range rejoin {
		fn(sess)
	}
	return reg
}

// RemoveDisconnect deregisters reg for userID on graceful disconnect.
// A no-op if a newer session has already replaced it.
func (b *Bus[S]) RemoveDisconnect(userID string, reg *Registration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entries[userID]
	if e == nil || e.disconnect != reg {
		return
	}
	e.disconnect = nil
	b.maybeDrop(userID, e)
}

// RegisterRejoin installs a rejoin callback for userID. Called by a room
// when it transitions to started, once per member.
func (b *Bus[S]) RegisterRejoin(userID string, fn func(S)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entries[userID]
	if e == nil {
		e = &entry[S]{}
		b.entries[userID] = e
	}
	e.rejoin = append(e.rejoin, fn)
}

// ClearRejoin drops every rejoin callback for userID. Called by a room
// when its game ends.
func (b *Bus[S]) ClearRejoin(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entries[userID]
	if e == nil {
		return
	}
	e.rejoin = nil
	b.maybeDrop(userID, e)
}

// maybeDrop removes an empty entry; the caller holds b.mu.
func (b *Bus[S]) maybeDrop(userID string, e *entry[S]) {
	if e.disconnect == nil && len(e.rejoin) == 0 {
		delete(b.entries, userID)
	}
}
