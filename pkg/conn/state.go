// Package conn defines the connection lifecycle states shared by every
// acquisition source in the station.
package conn

import (
	"sync"
	"time"
)

// State is the lifecycle state of one source.
type State int32

const (
	// Disconnected means no transport is open.
	Disconnected State = iota
	// Connecting means the transport open is in progress.
	Connecting
	// Connected means the acquisition loop is running.
	Connected
	// Failed means the loop stopped on an error and is waiting for a
	// supervised reconnect.
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its name so dashboards get
// "connected" rather than an enum ordinal.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Status is a point-in-time snapshot of a connection's state.
type Status struct {
	State  State     `json:"state"`
	Reason string    `json:"reason,omitempty"` // set only when State == Failed
	Since  time.Time `json:"since"`
}

// Tracker holds a connection's status. It is mutated only by the owning
// acquisition loop and its supervised connect/disconnect calls; any
// goroutine may read it.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// Set transitions to state with an optional failure reason.
func (t *Tracker) Set(state State, reason string) {
	t.mu.Lock()
	t.status = Status{State: state, Reason: reason, Since: time.Now()}
	t.mu.Unlock()
}

// Status returns the current snapshot.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Is reports whether the tracker is currently in state.
func (t *Tracker) Is(state State) bool {
	return t.Status().State == state
}
