package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrGrabberClosed is returned by Grab after the grabber is closed.
var ErrGrabberClosed = errors.New("camera: grabber closed")

// VideoGrabber is the OpenCV-backed Grabber. It handles RTSP and HTTP
// URLs as well as local device indexes and paths, whatever
// cv::VideoCapture accepts.
type VideoGrabber struct {
	mu  sync.Mutex
	cap *gocv.VideoCapture
}

// NewVideoGrabber creates an unopened grabber.
func NewVideoGrabber() *VideoGrabber {
	return &VideoGrabber{}
}

// Open connects the capture and verifies the stream produces frames.
func (g *VideoGrabber) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cap, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return errors.New("capture did not open")
	}
	// Keep only the newest frame buffered so readers see live video,
	// not a backlog.
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	g.mu.Lock()
	if g.cap != nil {
		g.cap.Close() // stale handle from a failed session
	}
	g.cap = cap
	g.mu.Unlock()
	return nil
}

// Grab reads and JPEG-encodes the next frame. It blocks on the
// transport read; closing the grabber interrupts the wait.
func (g *VideoGrabber) Grab() ([]byte, error) {
	g.mu.Lock()
	cap := g.cap
	g.mu.Unlock()
	if cap == nil {
		return nil, ErrGrabberClosed
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := cap.Read(&mat); !ok {
		return nil, errors.New("stream read failed")
	}
	if mat.Empty() {
		return nil, errors.New("decoded empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	// buf is backed by native memory freed on Close; hand the caller
	// a Go-owned copy.
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// Close releases the capture handle. Idempotent.
func (g *VideoGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cap == nil {
		return nil
	}
	err := g.cap.Close()
	g.cap = nil
	return err
}
