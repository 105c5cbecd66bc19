// Package web provides the station dashboard: live camera preview,
// weight readout, connection status, and the capture trigger. It is a
// read-only consumer of the acquisition cells — "no frame yet" and
// "stale reading" are normal states here, not errors.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/weighcam/weighstation/pkg/camera"
	"github.com/weighcam/weighstation/pkg/capture"
	"github.com/weighcam/weighstation/pkg/conn"
	"github.com/weighcam/weighstation/pkg/hub"
	"github.com/weighcam/weighstation/pkg/weighbridge"
)

// refreshInterval is the dashboard push cadence.
const refreshInterval = 500 * time.Millisecond

// Server is the dashboard server. The On* callbacks wire it to the
// supervisor and capture coordinator; unset callbacks disable the
// corresponding endpoint with a 503.
type Server struct {
	app  *fiber.App
	port string

	weightHub *hub.Hub
	statusHub *hub.Hub

	// OnStatus returns every connection's status keyed by ID.
	OnStatus func() map[string]conn.Status
	// OnFrame returns a camera's most recent frame.
	OnFrame func(id string) (camera.Frame, bool)
	// OnWeight returns the most recent weight reading.
	OnWeight func() (weighbridge.Reading, bool)
	// OnCapture runs the synchronized capture.
	OnCapture func() []capture.Result
	// OnConnect starts one connection by ID.
	OnConnect func(id string) error
	// OnConnectAll starts every connection.
	OnConnectAll func()
	// OnDisconnect stops one connection by ID.
	OnDisconnect func(id string) error
}

// NewServer creates the dashboard server on the given port.
func NewServer(port string) *Server {
	s := &Server{
		port:      port,
		weightHub: hub.New("weight"),
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Weighstation Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/frame/:id", s.handleFrame)
	api.Post("/capture", s.handleCapture)
	api.Post("/connect", s.handleConnectAll)
	api.Post("/connect/:id", s.handleConnect)
	api.Post("/disconnect/:id", s.handleDisconnect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/weight", websocket.New(s.handleWeightWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hubs and serves until the listener fails.
func (s *Server) Start() error {
	go s.weightHub.Run()
	go s.statusHub.Run()
	return s.app.Listen(":" + s.port)
}

// Run pushes weight and status updates to websocket clients at the
// dashboard cadence until ctx is cancelled. It only reads cells, so a
// stalled camera or weighbridge never blocks the push loop.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.OnWeight != nil && s.weightHub.ClientCount() > 0 {
				if r, ok := s.OnWeight(); ok {
					s.weightHub.BroadcastJSON(r)
				}
			}
			if s.OnStatus != nil && s.statusHub.ClientCount() > 0 {
				s.statusHub.BroadcastJSON(s.statusPayload())
			}
		}
	}
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleWeightWS(c *websocket.Conn) {
	hub.NewClient(s.weightHub, c).Run()
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}
