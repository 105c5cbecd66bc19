// Package capture implements the operator "capture images" action:
// snapshot the most recent frame from every camera under one shared
// timestamp and persist each one, reporting success or failure per
// camera. The operation reads already-buffered cells only — it never
// touches the network, so a stalled camera link cannot block it.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weighcam/weighstation/internal/log"
	"github.com/weighcam/weighstation/pkg/camera"
	"github.com/weighcam/weighstation/pkg/conn"
)

var (
	// ErrNoFrame means the camera's cell was empty at capture time.
	ErrNoFrame = errors.New("capture: no frame available")
	// ErrNotConnected means the camera was not in the Connected state.
	ErrNotConnected = errors.New("capture: camera not connected")
)

// FrameSource is the read-only view of a camera the coordinator needs.
// *camera.Source satisfies it.
type FrameSource interface {
	ID() string
	LatestFrame() (camera.Frame, bool)
	Status() conn.Status
}

// Result reports the outcome of persisting one camera's frame.
type Result struct {
	// Source is the camera ID.
	Source string
	// Path is the written file path on success.
	Path string
	// Timestamp is the shared capture instant used for naming.
	Timestamp time.Time
	// Err is nil on success; otherwise ErrNoFrame, ErrNotConnected, or
	// a persistence error.
	Err error
}

// Succeeded reports whether the frame was written.
func (r Result) Succeeded() bool { return r.Err == nil }

// Coordinator snapshots every configured camera on demand.
type Coordinator struct {
	dir     string
	sink    Sink
	sources []FrameSource

	now func() time.Time // stubbed in tests
}

// NewCoordinator creates a coordinator writing into dir through sink.
func NewCoordinator(dir string, sink Sink, sources ...FrameSource) *Coordinator {
	return &Coordinator{
		dir:     dir,
		sink:    sink,
		sources: sources,
		now:     time.Now,
	}
}

// Filename builds the capture filename for one camera under the shared
// timestamp, e.g. "camera1_20260824_153000.jpg".
func Filename(sourceID string, ts time.Time) string {
	return fmt.Sprintf("%s_%s.jpg", sourceID, ts.Format("20060102_150405"))
}

// CaptureAll snapshots the latest frame of every camera under one
// shared timestamp. It always returns one Result per configured
// camera; a camera with no frame, or not Connected, contributes a
// failure entry without affecting the others.
func (c *Coordinator) CaptureAll() []Result {
	// One timestamp for the whole batch, taken before any read, keeps
	// the filenames correlated.
	ts := c.now()
	batch := uuid.NewString()

	results := make([]Result, 0, len(c.sources))
	for _, src := range c.sources {
		results = append(results, c.captureOne(src, ts))
	}

	ok := 0
	for _, r := range results {
		if r.Succeeded() {
			ok++
		}
	}
	log.Info("capture finished", "batch", batch, "cameras", len(results), "written", ok)
	return results
}

func (c *Coordinator) captureOne(src FrameSource, ts time.Time) Result {
	res := Result{Source: src.ID(), Timestamp: ts}

	if st := src.Status(); st.State != conn.Connected {
		res.Err = fmt.Errorf("%w: %s is %s", ErrNotConnected, src.ID(), st.State)
		return res
	}
	frame, ok := src.LatestFrame()
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrNoFrame, src.ID())
		return res
	}

	path, err := c.sink.Save(c.dir, Filename(src.ID(), ts), frame.Data)
	if err != nil {
		res.Err = fmt.Errorf("capture: persist %s: %w", src.ID(), err)
		return res
	}
	res.Path = path
	return res
}
