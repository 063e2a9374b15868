// Package ports owns the pool of network ports handed out to rooms,
// one per room for the room's lifetime.
package ports

import (
	"errors"
	"sync"
)

// ErrExhausted is returned by Lease when no port is available.
var ErrExhausted = errors.New("no port available")

// Allocator partitions a port range into an available queue and an
// allocated set. Lease and Release never double-issue a port and never
// lose a released one.
type Allocator struct {
	mu        sync.Mutex
	available []int
	allocated map[int]bool
}

// New creates an Allocator covering [min, max] inclusive, handed out
// in ascending order.
func New(min, max int) *Allocator {
	available := make([]int, 0, max-min+1)
	for p := min; p <= max; p++ {
		available = append(available, p)
	}
	return &Allocator{
		available: available,
		allocated: make(map[int]bool),
	}
}

// Lease pops the oldest available port. Returns ErrExhausted when the
// pool is empty.
func (a *Allocator) Lease() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.available) == 0 {
		return 0, ErrExhausted
	}
	port := a.available[0]
	a.available = a.available[1:]
	a.allocated[port] = true
	return port, nil
}

// Release returns a leased port to the pool. A port that was never
// leased is ignored, so a double release cannot corrupt the queue.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.allocated[port] {
		return
	}
	delete(a.allocated, port)
	a.available = append(a.available, port)
}

// InUse reports whether port is currently leased.
func (a *Allocator) InUse(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated[port]
}

// Available returns the number of ports left in the pool.
func (a *Allocator) Available() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.available)
}
