// Package config loads station configuration from the environment,
// optionally seeded from a .env file. The acquisition core treats the
// result as already-validated input.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/weighcam/weighstation/pkg/camera"
	"github.com/weighcam/weighstation/pkg/weighbridge"
)

// Defaults for values the environment may omit.
const (
	DefaultWebPort     = "8080"
	DefaultCapturesDir = "captures"
	DefaultLogLevel    = "info"
)

// Config is the full station configuration.
type Config struct {
	Cameras     []camera.Config
	Weighbridge weighbridge.Config
	CapturesDir string
	WebPort     string
	LogLevel    string
	// RetryInterval > 0 enables supervisor-driven reconnection.
	RetryInterval time.Duration
}

// Load reads the station configuration. envFile, when non-empty, is
// loaded into the environment first; a missing default .env is fine.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		godotenv.Load() // .env in cwd, optional
	}

	cfg := Config{
		Cameras: []camera.Config{
			cameraConfig(1),
			cameraConfig(2),
		},
		Weighbridge:   weighbridgeConfig(),
		CapturesDir:   getenv("CAPTURES_DIR", DefaultCapturesDir),
		WebPort:       getenv("WEB_PORT", DefaultWebPort),
		LogLevel:      getenv("LOG_LEVEL", DefaultLogLevel),
		RetryInterval: duration("RETRY_INTERVAL_SECONDS", 0),
	}

	for _, c := range cfg.Cameras {
		if err := c.Validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// cameraConfig assembles one camera's config. A full CAMERA{n}_RTSP_URL
// wins; otherwise the URL is built from discrete host/credential parts.
func cameraConfig(n int) camera.Config {
	id := fmt.Sprintf("camera%d", n)
	if url := os.Getenv(fmt.Sprintf("CAMERA%d_RTSP_URL", n)); url != "" {
		return camera.Config{ID: id, URL: url, Protocol: protocolFor(url)}
	}
	url := buildCameraURL(n)
	return camera.Config{ID: id, URL: url, Protocol: protocolFor(url)}
}

func buildCameraURL(n int) string {
	defaultIP := "192.168.1.100"
	if n != 1 {
		defaultIP = "192.168.1.101"
	}
	ip := getenv(fmt.Sprintf("CAMERA%d_IP", n), defaultIP)
	user := getenv(fmt.Sprintf("CAMERA%d_USERNAME", n), "admin")
	pass := getenv(fmt.Sprintf("CAMERA%d_PASSWORD", n), "password")
	port := getenv(fmt.Sprintf("CAMERA%d_PORT", n), "554")
	path := getenv(fmt.Sprintf("CAMERA%d_STREAM_PATH", n), "stream1")
	return fmt.Sprintf("rtsp://%s:%s@%s:%s/%s", user, pass, ip, port, path)
}

func protocolFor(url string) camera.Protocol {
	switch {
	case strings.HasPrefix(url, "rtsp://"):
		return camera.ProtocolRTSP
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return camera.ProtocolHTTP
	default:
		return camera.ProtocolDevice
	}
}

func weighbridgeConfig() weighbridge.Config {
	return weighbridge.Config{
		ID:           "weighbridge",
		Protocol:     weighbridge.Protocol(strings.ToLower(getenv("WEIGHBRIDGE_PROTOCOL", "modbus"))),
		Port:         getenv("WEIGHBRIDGE_PORT", "/dev/ttyUSB0"),
		BaudRate:     integer("WEIGHBRIDGE_BAUDRATE", 9600),
		DataBits:     integer("WEIGHBRIDGE_BYTESIZE", 0),
		Parity:       strings.ToUpper(getenv("WEIGHBRIDGE_PARITY", "")),
		StopBits:     integer("WEIGHBRIDGE_STOPBITS", 0),
		Timeout:      duration("WEIGHBRIDGE_TIMEOUT", 0),
		SlaveID:      byte(integer("WEIGHBRIDGE_SLAVE_ID", 1)),
		Address:      uint16(integer("WEIGHBRIDGE_ADDRESS", 0)),
		Quantity:     uint16(integer("WEIGHBRIDGE_COUNT", 2)),
		RegisterKind: strings.ToLower(getenv("WEIGHBRIDGE_KIND", "holding")),
		Decode:       weighbridge.Decode(strings.ToLower(getenv("WEIGHBRIDGE_DECODE", "u16"))),
		LineRegex:    getenv("WEIGHBRIDGE_REGEX", ""),
		Divisor:      float("WEIGHBRIDGE_SCALE_DIVISOR", 1),
		Unit:         getenv("WEIGHBRIDGE_UNIT", "kg"),
		PollInterval: duration("WEIGHBRIDGE_POLL", 500*time.Millisecond),
		MaxFailures:  integer("WEIGHBRIDGE_MAX_FAILURES", 3),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// duration reads a value in seconds (fractions allowed, matching the
// original deployment's env files).
func duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}
