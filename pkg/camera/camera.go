// Package camera provides the acquisition side of one network video
// source: a decode loop that pulls frames from an opaque grabber and
// publishes the most recent one for display and capture consumers.
package camera

import (
	"errors"
	"fmt"
	"time"
)

// Protocol identifies the transport kind of a camera source.
type Protocol string

const (
	// ProtocolRTSP is a network RTSP stream.
	ProtocolRTSP Protocol = "rtsp"
	// ProtocolHTTP is an HTTP(S) stream, e.g. MJPEG.
	ProtocolHTTP Protocol = "http"
	// ProtocolDevice is a local capture device (index or device path).
	ProtocolDevice Protocol = "device"
)

// Config describes one camera source. It is immutable once the source
// is connected; changing it requires a disconnect and reconnect.
type Config struct {
	// ID names the camera, e.g. "camera1". Used in filenames and logs.
	ID string
	// URL is the full connection URI. For ProtocolDevice it is the
	// device index ("0") or device path.
	URL string
	// Protocol is the transport kind.
	Protocol Protocol
}

// Validate checks that the config can be used to open a source.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.New("camera: config ID is required")
	}
	if c.URL == "" {
		return fmt.Errorf("camera %s: connection URL is required", c.ID)
	}
	return nil
}

// Frame is one decoded image, already encoded as JPEG bytes. The Data
// slice is written once by the decode loop and never mutated afterwards,
// so readers may share it without copying.
type Frame struct {
	// Data holds the JPEG-encoded image.
	Data []byte
	// Timestamp is the instant the frame was decoded.
	Timestamp time.Time
	// Source is the owning camera's ID.
	Source string
	// TraceID uniquely identifies the frame for tracing and logs.
	TraceID string
}
