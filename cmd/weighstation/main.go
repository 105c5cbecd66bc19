// Weighstation runs the dual-camera weighbridge station: two IP camera
// decode loops, the serial weight poller, the capture coordinator, and
// the dashboard that fronts them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/weighcam/weighstation/internal/config"
	"github.com/weighcam/weighstation/internal/log"
	"github.com/weighcam/weighstation/pkg/camera"
	"github.com/weighcam/weighstation/pkg/capture"
	"github.com/weighcam/weighstation/pkg/supervisor"
	"github.com/weighcam/weighstation/pkg/web"
	"github.com/weighcam/weighstation/pkg/weighbridge"
)

func main() {
	envFile := flag.String("env", "", "path to .env file (default: ./.env if present)")
	port := flag.String("port", "", "dashboard port (overrides WEB_PORT)")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	autoConnect := flag.Bool("connect", true, "connect all sources at startup")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.WebPort = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	sup := supervisor.New(supervisor.Config{RetryInterval: cfg.RetryInterval})

	var sources []*camera.Source
	for _, cc := range cfg.Cameras {
		src, err := camera.NewSource(cc, camera.NewVideoGrabber())
		if err != nil {
			fmt.Fprintf(os.Stderr, "camera: %v\n", err)
			os.Exit(1)
		}
		sources = append(sources, src)
		if err := sup.Add(src); err != nil {
			fmt.Fprintf(os.Stderr, "supervisor: %v\n", err)
			os.Exit(1)
		}
	}

	reader, err := weighbridge.NewReader(cfg.Weighbridge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weighbridge: %v\n", err)
		os.Exit(1)
	}
	bridge, err := weighbridge.NewConnection(cfg.Weighbridge, reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weighbridge: %v\n", err)
		os.Exit(1)
	}
	if err := sup.Add(bridge); err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: %v\n", err)
		os.Exit(1)
	}

	frameSources := make([]capture.FrameSource, len(sources))
	for i, s := range sources {
		frameSources[i] = s
	}
	coordinator := capture.NewCoordinator(cfg.CapturesDir, capture.FileSink{}, frameSources...)

	server := web.NewServer(cfg.WebPort)
	server.OnStatus = sup.StatusAll
	server.OnWeight = bridge.Latest
	server.OnCapture = coordinator.CaptureAll
	server.OnConnectAll = func() { sup.ConnectAll(ctx) }
	server.OnConnect = func(id string) error { return sup.Connect(ctx, id) }
	server.OnDisconnect = sup.Disconnect
	server.OnFrame = func(id string) (camera.Frame, bool) {
		for _, s := range sources {
			if s.ID() == id {
				return s.LatestFrame()
			}
		}
		return camera.Frame{}, false
	}

	if *autoConnect {
		sup.ConnectAll(ctx)
	}

	go sup.Run(ctx)
	go server.Run(ctx)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("web server stopped", "error", err)
			cancel()
		}
	}()

	log.Info("weighstation up",
		"dashboard", "http://localhost:"+cfg.WebPort,
		"cameras", len(sources),
		"captures_dir", cfg.CapturesDir,
	)

	<-ctx.Done()
	sup.DisconnectAll()
	server.Shutdown()
	log.Info("goodbye")
}
