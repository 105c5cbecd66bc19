// Package supervisor manages the start/stop/reconnect lifecycle of the
// station's acquisition sources. Each source runs its own loop; the
// supervisor only fans out connect attempts, tracks membership, and
// owns the (optional) retry policy — sources never retry themselves.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weighcam/weighstation/internal/log"
	"github.com/weighcam/weighstation/pkg/conn"
)

// ErrUnknownConnection is returned for IDs the supervisor does not hold.
var ErrUnknownConnection = errors.New("supervisor: unknown connection")

// Connection is the lifecycle contract every supervised source
// satisfies (camera sources and the weighbridge alike).
type Connection interface {
	ID() string
	// Connect opens the transport and starts the acquisition loop.
	// ctx bounds the open attempt only.
	Connect(ctx context.Context) error
	// Disconnect stops the loop and releases the transport
	// synchronously. Idempotent.
	Disconnect() error
	Status() conn.Status
}

// Config holds supervisor policy.
type Config struct {
	// RetryInterval enables supervisor-driven reconnection of Failed
	// sources when > 0. Zero means reconnects are operator-driven.
	RetryInterval time.Duration
	// ConnectTimeout bounds each connect attempt made by ConnectAll
	// and the retry loop. Defaults to 15s.
	ConnectTimeout time.Duration
}

// Supervisor holds the configured set of connections.
type Supervisor struct {
	cfg Config

	mu    sync.RWMutex
	conns map[string]Connection
	order []string
}

// New creates an empty supervisor.
func New(cfg Config) *Supervisor {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	return &Supervisor{
		cfg:   cfg,
		conns: make(map[string]Connection),
	}
}

// Add registers a connection. IDs must be unique.
func (s *Supervisor) Add(c Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.ID()
	if _, exists := s.conns[id]; exists {
		return fmt.Errorf("supervisor: duplicate connection %q", id)
	}
	s.conns[id] = c
	s.order = append(s.order, id)
	return nil
}

// IDs returns connection IDs in registration order.
func (s *Supervisor) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

func (s *Supervisor) get(id string) (Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, id)
	}
	return c, nil
}

// Connect opens one connection, blocking until the attempt resolves.
func (s *Supervisor) Connect(ctx context.Context, id string) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	return c.Connect(attemptCtx)
}

// ConnectAll starts a connect attempt for every connection and returns
// immediately. Attempts run concurrently so a hanging handshake on one
// source never delays another's Connected transition; progress is
// observed through Status.
func (s *Supervisor) ConnectAll(ctx context.Context) {
	s.mu.RLock()
	conns := make([]Connection, 0, len(s.order))
	for _, id := range s.order {
		conns = append(conns, s.conns[id])
	}
	s.mu.RUnlock()

	for _, c := range conns {
		go func(c Connection) {
			attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
			defer cancel()
			if err := c.Connect(attemptCtx); err != nil {
				log.Warn("connect failed", "id", c.ID(), "error", err)
			}
		}(c)
	}
}

// Disconnect stops one connection, releasing its resource before
// returning so the caller can reconfigure and reconnect immediately.
func (s *Supervisor) Disconnect(id string) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	return c.Disconnect()
}

// DisconnectAll stops every connection.
func (s *Supervisor) DisconnectAll() {
	for _, id := range s.IDs() {
		if err := s.Disconnect(id); err != nil {
			log.Warn("disconnect failed", "id", id, "error", err)
		}
	}
}

// Status returns one connection's status snapshot.
func (s *Supervisor) Status(id string) (conn.Status, error) {
	c, err := s.get(id)
	if err != nil {
		return conn.Status{}, err
	}
	return c.Status(), nil
}

// StatusAll returns every connection's status keyed by ID.
func (s *Supervisor) StatusAll() map[string]conn.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]conn.Status, len(s.conns))
	for id, c := range s.conns {
		out[id] = c.Status()
	}
	return out
}

// Run drives the retry policy until ctx is cancelled. With
// RetryInterval == 0 it blocks without retrying, so mains can call it
// unconditionally.
func (s *Supervisor) Run(ctx context.Context) {
	if s.cfg.RetryInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.retryFailed(ctx)
		}
	}
}

func (s *Supervisor) retryFailed(ctx context.Context) {
	for _, id := range s.IDs() {
		c, err := s.get(id)
		if err != nil {
			continue
		}
		if c.Status().State != conn.Failed {
			continue
		}
		go func(c Connection) {
			log.Info("retrying failed connection", "id", c.ID())
			// Release whatever the failed session left behind first.
			if err := c.Disconnect(); err != nil {
				log.Warn("retry disconnect failed", "id", c.ID(), "error", err)
				return
			}
			attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
			defer cancel()
			if err := c.Connect(attemptCtx); err != nil {
				log.Warn("retry connect failed", "id", c.ID(), "error", err)
			}
		}(c)
	}
}
