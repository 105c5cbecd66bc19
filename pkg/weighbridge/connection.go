package weighbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weighcam/weighstation/internal/log"
	"github.com/weighcam/weighstation/pkg/cell"
	"github.com/weighcam/weighstation/pkg/conn"
)

// ErrAlreadyConnected is returned by Connect while a poll loop is
// still running.
var ErrAlreadyConnected = errors.New("weighbridge: already connected")

// Connection owns the weighbridge poll loop. One request per interval;
// a failed poll republishes the last good value with Valid=false, and
// only MaxFailures consecutive failures move the connection to Failed,
// so a single dropped poll never flaps the state.
type Connection struct {
	cfg      Config
	reader   Reader
	readings *cell.Cell[Reading]
	status   conn.Tracker

	mu     sync.Mutex // guards lifecycle transitions below
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnection creates a disconnected weighbridge connection.
func NewConnection(cfg Config, reader Reader) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, errors.New("weighbridge: reader is required")
	}
	return &Connection{
		cfg:      cfg.withDefaults(),
		reader:   reader,
		readings: cell.New[Reading](),
	}, nil
}

// ID returns the connection's configured ID.
func (c *Connection) ID() string { return c.cfg.ID }

// Status returns the current connection status snapshot.
func (c *Connection) Status() conn.Status { return c.status.Status() }

// Latest returns the most recent reading, valid or not.
func (c *Connection) Latest() (Reading, bool) {
	return c.readings.Get()
}

// Connect opens the serial link and starts the poll loop.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		select {
		case <-c.done:
			c.cancel()
			c.cancel = nil
			c.done = nil
		default:
			return ErrAlreadyConnected
		}
	}

	c.status.Set(conn.Connecting, "")
	log.Info("connecting weighbridge", "id", c.cfg.ID, "port", c.cfg.Port, "protocol", string(c.cfg.Protocol))

	if err := c.reader.Open(); err != nil {
		c.status.Set(conn.Failed, err.Error())
		return fmt.Errorf("weighbridge %s: open: %w", c.cfg.ID, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.status.Set(conn.Connected, "")

	go c.loop(loopCtx, done)
	return nil
}

// Disconnect stops the poll loop and releases the serial handle
// synchronously. Safe to call from any state, any number of times.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		// Closing the reader interrupts a Read blocked on serial I/O.
		c.reader.Close()
		<-c.done
		c.cancel = nil
		c.done = nil
	} else {
		c.reader.Close()
	}
	c.status.Set(conn.Disconnected, "")
	return nil
}

func (c *Connection) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		value, err := c.reader.Read()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			// Carry the last good value forward, observably stale.
			last, _ := c.readings.Get()
			c.readings.Put(Reading{
				Value:     last.Value,
				Unit:      c.cfg.Unit,
				Valid:     false,
				Timestamp: time.Now(),
			})
			log.Debug("weighbridge poll failed", "id", c.cfg.ID, "consecutive", failures, "error", err)
			if failures >= c.cfg.MaxFailures {
				c.status.Set(conn.Failed, err.Error())
				log.Warn("weighbridge failed", "id", c.cfg.ID, "after_polls", failures, "error", err)
				return
			}
		} else {
			failures = 0
			c.readings.Put(Reading{
				Value:     value,
				Unit:      c.cfg.Unit,
				Valid:     true,
				Timestamp: time.Now(),
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
