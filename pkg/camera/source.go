package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weighcam/weighstation/internal/log"
	"github.com/weighcam/weighstation/pkg/cell"
	"github.com/weighcam/weighstation/pkg/conn"
)

// ErrAlreadyConnected is returned by Connect while a decode loop is
// still running for this source.
var ErrAlreadyConnected = errors.New("camera: already connected")

// Grabber abstracts the decode transport. Implementations must make
// Close idempotent and safe to call from any state; closing while a
// Grab is blocked must interrupt the wait.
type Grabber interface {
	// Open establishes the transport. ctx bounds only the open attempt,
	// not subsequent grabs.
	Open(ctx context.Context, url string) error
	// Grab blocks until the next frame is decoded and returns it as
	// JPEG bytes. The returned slice is owned by the caller.
	Grab() ([]byte, error)
	// Close releases the transport handle.
	Close() error
}

// Source owns one camera's decode loop. The loop writes every decoded
// frame into the source's cell and touches nothing else, so it can run
// on its own goroutine indefinitely. Errors stop the loop and surface
// through Status; the source never retries on its own.
type Source struct {
	cfg    Config
	grab   Grabber
	frames *cell.Cell[Frame]
	status conn.Tracker

	mu     sync.Mutex // guards lifecycle transitions below
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSource creates a disconnected source around the given grabber.
func NewSource(cfg Config, grab Grabber) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if grab == nil {
		return nil, fmt.Errorf("camera %s: grabber is required", cfg.ID)
	}
	return &Source{
		cfg:    cfg,
		grab:   grab,
		frames: cell.New[Frame](),
	}, nil
}

// ID returns the camera's configured ID.
func (s *Source) ID() string { return s.cfg.ID }

// Config returns the immutable source configuration.
func (s *Source) Config() Config { return s.cfg }

// Status returns the current connection status snapshot.
func (s *Source) Status() conn.Status { return s.status.Status() }

// LatestFrame returns the most recently decoded frame, if any. The
// frame survives disconnects and failures so late consumers can still
// observe (stale) state; staleness shows through Frame.Timestamp.
func (s *Source) LatestFrame() (Frame, bool) {
	return s.frames.Get()
}

// LastFrameAt reports when the latest frame was written.
func (s *Source) LastFrameAt() (time.Time, bool) {
	return s.frames.LastWrite()
}

// Connect opens the transport and starts the decode loop. On open
// failure the source moves to Failed and the error is returned; the
// caller (supervisor) decides whether and when to retry.
func (s *Source) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		select {
		case <-s.done:
			// Previous loop ended on its own (Failed); fall through
			// and reconnect.
			s.cancel()
			s.cancel = nil
			s.done = nil
		default:
			return ErrAlreadyConnected
		}
	}

	s.status.Set(conn.Connecting, "")
	log.Info("connecting camera", "camera", s.cfg.ID, "protocol", string(s.cfg.Protocol))

	if err := s.grab.Open(ctx, s.cfg.URL); err != nil {
		s.status.Set(conn.Failed, err.Error())
		return fmt.Errorf("camera %s: open: %w", s.cfg.ID, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.status.Set(conn.Connected, "")

	go s.loop(loopCtx, done)
	return nil
}

// Disconnect stops the decode loop and releases the transport handle
// synchronously, so the caller can reconfigure and reconnect right
// after it returns. Safe to call from any state, any number of times.
func (s *Source) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		// Closing the grabber interrupts a Grab blocked on transport I/O.
		s.grab.Close()
		<-s.done
		s.cancel = nil
		s.done = nil
	} else {
		s.grab.Close()
	}
	s.status.Set(conn.Disconnected, "")
	return nil
}

func (s *Source) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		data, err := s.grab.Grab()
		if err != nil {
			if ctx.Err() != nil {
				return // supervised stop interrupted the read
			}
			s.status.Set(conn.Failed, err.Error())
			log.Warn("camera stream failed", "camera", s.cfg.ID, "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.frames.Put(Frame{
			Data:      data,
			Timestamp: time.Now(),
			Source:    s.cfg.ID,
			TraceID:   uuid.NewString(),
		})
	}
}
