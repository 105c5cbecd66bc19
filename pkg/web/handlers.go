package web

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/weighcam/weighstation/pkg/conn"
	"github.com/weighcam/weighstation/pkg/weighbridge"
)

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Connections map[string]conn.Status `json:"connections"`
	Weight      *weighbridge.Reading   `json:"weight,omitempty"`
}

// CaptureEntry is one camera's outcome in the /api/capture payload.
type CaptureEntry struct {
	Source    string    `json:"source"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) statusPayload() StatusResponse {
	resp := StatusResponse{Connections: map[string]conn.Status{}}
	if s.OnStatus != nil {
		resp.Connections = s.OnStatus()
	}
	if s.OnWeight != nil {
		if r, ok := s.OnWeight(); ok {
			resp.Weight = &r
		}
	}
	return resp
}

// handleStatus returns every connection's state plus the latest weight.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.statusPayload())
}

// handleFrame serves a camera's most recent frame as JPEG. 404 means
// no frame has arrived yet — a normal state before first connect.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.OnFrame == nil {
		return fiber.ErrServiceUnavailable
	}
	frame, ok := s.OnFrame(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no frame available",
		})
	}
	c.Set("Content-Type", "image/jpeg")
	c.Set("X-Frame-Timestamp", frame.Timestamp.Format(time.RFC3339Nano))
	return c.Send(frame.Data)
}

// handleCapture triggers the synchronized capture and reports the
// per-camera outcome. Partial failure is still a 200: the result set
// is always complete.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	if s.OnCapture == nil {
		return fiber.ErrServiceUnavailable
	}

	results := s.OnCapture()
	entries := make([]CaptureEntry, 0, len(results))
	for _, r := range results {
		entry := CaptureEntry{
			Source:    r.Source,
			Path:      r.Path,
			Timestamp: r.Timestamp,
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		}
		entries = append(entries, entry)
	}
	return c.JSON(entries)
}

func (s *Server) handleConnectAll(c *fiber.Ctx) error {
	if s.OnConnectAll == nil {
		return fiber.ErrServiceUnavailable
	}
	s.OnConnectAll()
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	if s.OnConnect == nil {
		return fiber.ErrServiceUnavailable
	}
	if err := s.OnConnect(c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if s.OnDisconnect == nil {
		return fiber.ErrServiceUnavailable
	}
	if err := s.OnDisconnect(c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}
