package weighbridge

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ASCIIReader reads weight lines from scales that continuously emit
// ASCII frames, extracting the value with a configurable regexp.
type ASCIIReader struct {
	cfg Config
	re  *regexp.Regexp

	mu   sync.Mutex
	port serial.Port

	// pending buffers partial lines between reads; touched only by the
	// single polling goroutine.
	pending []byte
}

// NewASCIIReader creates an unopened ASCII reader. It fails fast on an
// invalid line regexp.
func NewASCIIReader(cfg Config) (*ASCIIReader, error) {
	cfg = cfg.withDefaults()
	re, err := regexp.Compile(cfg.LineRegex)
	if err != nil {
		return nil, fmt.Errorf("weighbridge: line regex: %w", err)
	}
	return &ASCIIReader{cfg: cfg, re: re}, nil
}

// Open opens the serial port with the configured framing.
func (r *ASCIIReader) Open() error {
	mode := &serial.Mode{
		BaudRate: r.cfg.BaudRate,
		DataBits: r.cfg.DataBits,
		Parity:   parityMode(r.cfg.Parity),
		StopBits: stopBitsMode(r.cfg.StopBits),
	}
	port, err := serial.Open(r.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("serial open %s: %w", r.cfg.Port, err)
	}
	if err := port.SetReadTimeout(r.cfg.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("serial read timeout: %w", err)
	}

	r.mu.Lock()
	if r.port != nil {
		r.port.Close()
	}
	r.port = port
	r.pending = nil
	r.mu.Unlock()
	return nil
}

// Read consumes lines until one matches the value regexp, bounded by
// the configured timeout.
func (r *ASCIIReader) Read() (float64, error) {
	r.mu.Lock()
	port := r.port
	r.mu.Unlock()
	if port == nil {
		return 0, ErrReaderClosed
	}

	deadline := time.Now().Add(r.cfg.Timeout)
	chunk := make([]byte, 64)

	for {
		if i := bytes.IndexByte(r.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(r.pending[:i]))
			r.pending = r.pending[i+1:]
			if v, ok := r.parseLine(line); ok {
				return v / r.cfg.Divisor, nil
			}
			continue
		}
		if time.Now().After(deadline) {
			return 0, errors.New("weighbridge: timeout waiting for weight line")
		}
		n, err := port.Read(chunk)
		if err != nil {
			return 0, fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			// go.bug.st/serial signals a read timeout as n==0, nil.
			return 0, errors.New("weighbridge: serial read timeout")
		}
		r.pending = append(r.pending, chunk[:n]...)
	}
}

func (r *ASCIIReader) parseLine(line string) (float64, bool) {
	m := r.re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	s := m[0]
	if len(m) > 1 {
		s = m[1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Close releases the serial port. Idempotent.
func (r *ASCIIReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}

func parityMode(p string) serial.Parity {
	switch strings.ToUpper(p) {
	case "E":
		return serial.EvenParity
	case "O":
		return serial.OddParity
	default:
		return serial.NoParity
	}
}

func stopBitsMode(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}
