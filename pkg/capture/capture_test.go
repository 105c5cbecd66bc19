package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/weighcam/weighstation/pkg/camera"
	"github.com/weighcam/weighstation/pkg/conn"
)

type fakeSource struct {
	id    string
	frame *camera.Frame
	state conn.State
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) LatestFrame() (camera.Frame, bool) {
	if f.frame == nil {
		return camera.Frame{}, false
	}
	return *f.frame, true
}

func (f *fakeSource) Status() conn.Status {
	return conn.Status{State: f.state}
}

func connectedSource(id string, data []byte) *fakeSource {
	return &fakeSource{
		id:    id,
		state: conn.Connected,
		frame: &camera.Frame{Data: data, Timestamp: time.Now(), Source: id},
	}
}

type failingSink struct{ err error }

func (s failingSink) Save(dir, filename string, data []byte) (string, error) {
	return "", s.err
}

func TestFilename(t *testing.T) {
	ts := time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)
	if got := Filename("camera1", ts); got != "camera1_20260824_153000.jpg" {
		t.Errorf("Filename() = %q", got)
	}
}

// One camera up, one down: the capture still completes with a full
// result set, one success and one failure.
func TestCaptureAllPartialSuccess(t *testing.T) {
	dir := t.TempDir()
	up := connectedSource("camera1", []byte("jpeg-bytes"))
	down := &fakeSource{id: "camera2", state: conn.Disconnected}

	c := NewCoordinator(dir, FileSink{}, up, down)
	results := c.CaptureAll()

	if len(results) != 2 {
		t.Fatalf("CaptureAll() returned %d results, want 2", len(results))
	}

	ok := results[0]
	if !ok.Succeeded() {
		t.Fatalf("camera1 result error = %v, want success", ok.Err)
	}
	data, err := os.ReadFile(ok.Path)
	if err != nil {
		t.Fatalf("reading captured file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("captured file holds %q, want frame bytes", data)
	}
	if filepath.Dir(ok.Path) != dir {
		t.Errorf("capture written to %s, want under %s", ok.Path, dir)
	}

	bad := results[1]
	if bad.Succeeded() {
		t.Fatal("camera2 result should be a failure")
	}
	if !errors.Is(bad.Err, ErrNotConnected) {
		t.Errorf("camera2 error = %v, want ErrNotConnected", bad.Err)
	}

	// Both results share the batch timestamp.
	if !ok.Timestamp.Equal(bad.Timestamp) {
		t.Error("results should share one capture timestamp")
	}
}

func TestCaptureAllNoFrameYet(t *testing.T) {
	empty := &fakeSource{id: "camera1", state: conn.Connected}
	c := NewCoordinator(t.TempDir(), FileSink{}, empty)

	results := c.CaptureAll()
	if len(results) != 1 || results[0].Succeeded() {
		t.Fatalf("CaptureAll() = %+v, want one failure", results)
	}
	if !errors.Is(results[0].Err, ErrNoFrame) {
		t.Errorf("error = %v, want ErrNoFrame", results[0].Err)
	}
}

func TestCaptureAllPersistenceFailure(t *testing.T) {
	src := connectedSource("camera1", []byte("x"))
	sinkErr := errors.New("disk full")
	c := NewCoordinator(t.TempDir(), failingSink{err: sinkErr}, src)

	results := c.CaptureAll()
	if results[0].Succeeded() {
		t.Fatal("result should be a failure")
	}
	if !errors.Is(results[0].Err, sinkErr) {
		t.Errorf("error = %v, want wrapped sink error", results[0].Err)
	}
	// Distinct from "no frame": the frame existed, persistence failed.
	if errors.Is(results[0].Err, ErrNoFrame) {
		t.Error("persistence failure must not report ErrNoFrame")
	}
}

func TestSuccessiveCapturesGetDistinctNames(t *testing.T) {
	dir := t.TempDir()
	src := connectedSource("camera1", []byte("x"))
	c := NewCoordinator(dir, FileSink{}, src)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Second)}
	c.now = func() time.Time {
		t := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return t
	}

	first := c.CaptureAll()[0]
	second := c.CaptureAll()[0]

	if !first.Succeeded() || !second.Succeeded() {
		t.Fatalf("captures failed: %v, %v", first.Err, second.Err)
	}
	if first.Path == second.Path {
		t.Errorf("successive captures wrote the same path %s", first.Path)
	}
}
