// Package cell provides a single-slot latest-value holder for handing the
// most recent frame or reading from an acquisition loop to its consumers.
// A cell keeps no history: every write overwrites the previous value, and
// readers always see the most recently completed write or nothing at all.
package cell

import (
	"sync"
	"time"
)

// Cell is a single-slot, overwrite-on-write value holder.
//
// One acquisition loop writes; any number of consumers read. Put never
// blocks on readers and Get never blocks the writer beyond the duration
// of a copy under the lock. Values stored in a cell must not be mutated
// after Put — store value types or byte slices that the writer abandons.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	at    time.Time
	set   bool
}

// New creates an empty cell.
func New[T any]() *Cell[T] {
	return &Cell[T]{}
}

// Put overwrites the stored value and stamps the write time.
func (c *Cell[T]) Put(v T) {
	c.mu.Lock()
	c.value = v
	c.at = time.Now()
	c.set = true
	c.mu.Unlock()
}

// Get returns the most recently written value. ok is false if nothing
// has been written since creation or the last Clear.
func (c *Cell[T]) Get() (v T, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return v, false
	}
	return c.value, true
}

// LastWrite reports when the current value was written. ok is false
// for an empty cell. Consumers use this to surface staleness.
func (c *Cell[T]) LastWrite() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at, c.set
}

// Clear empties the cell, releasing the stored value.
func (c *Cell[T]) Clear() {
	c.mu.Lock()
	var zero T
	c.value = zero
	c.at = time.Time{}
	c.set = false
	c.mu.Unlock()
}
