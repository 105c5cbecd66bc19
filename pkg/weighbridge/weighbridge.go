// Package weighbridge provides the acquisition side of the serial
// weight sensor: a poll loop that reads one value per interval over
// Modbus RTU or an ASCII line protocol and publishes the most recent
// reading. A failed poll keeps the last good value observable but
// flags it as invalid, so transient glitches never erase the readout.
package weighbridge

import (
	"errors"
	"fmt"
	"time"
)

// Protocol selects the wire protocol spoken on the serial link.
type Protocol string

const (
	// ProtocolModbus polls one register block per interval (Modbus RTU).
	ProtocolModbus Protocol = "modbus"
	// ProtocolASCII reads weight lines emitted by the scale and extracts
	// the value with a regular expression.
	ProtocolASCII Protocol = "ascii"
)

// Config describes the weighbridge link. Zero fields fall back to the
// defaults most scales ship with; see withDefaults.
type Config struct {
	// ID names the connection, e.g. "weighbridge".
	ID string
	// Protocol is ProtocolModbus or ProtocolASCII.
	Protocol Protocol
	// Port is the serial device path, e.g. /dev/ttyUSB0 or COM3.
	Port string
	// BaudRate defaults to 9600.
	BaudRate int
	// DataBits defaults to 8 for Modbus and 7 for ASCII.
	DataBits int
	// Parity is "N", "E" or "O"; defaults to "N" for Modbus and "E"
	// for ASCII.
	Parity string
	// StopBits is 1 or 2; defaults to 1.
	StopBits int
	// Timeout bounds one request or line read; defaults to 1s.
	Timeout time.Duration

	// SlaveID is the Modbus unit ID; defaults to 1.
	SlaveID byte
	// Address is the first register to read.
	Address uint16
	// Quantity is the register count per read; defaults to 2.
	Quantity uint16
	// RegisterKind is "holding" or "input"; defaults to "holding".
	RegisterKind string
	// Decode selects the register interpretation; defaults to DecodeU16.
	Decode Decode

	// LineRegex extracts the numeric value from an ASCII line. The
	// first capture group is used when present. Defaults to a signed
	// decimal matcher.
	LineRegex string

	// Divisor scales raw values into Unit; defaults to 1.
	Divisor float64
	// Unit tags readings, e.g. "kg".
	Unit string
	// PollInterval between reads; defaults to 500ms.
	PollInterval time.Duration
	// MaxFailures is the number of consecutive failed polls tolerated
	// before the connection moves to Failed; defaults to 3.
	MaxFailures int
}

// DefaultLineRegex matches the first signed decimal number on a line.
const DefaultLineRegex = `([-+]?\d+(?:\.\d+)?)`

func (c Config) withDefaults() Config {
	if c.ID == "" {
		c.ID = "weighbridge"
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolModbus
	}
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.DataBits == 0 {
		if c.Protocol == ProtocolASCII {
			c.DataBits = 7
		} else {
			c.DataBits = 8
		}
	}
	if c.Parity == "" {
		if c.Protocol == ProtocolASCII {
			c.Parity = "E"
		} else {
			c.Parity = "N"
		}
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.Timeout == 0 {
		c.Timeout = time.Second
	}
	if c.SlaveID == 0 {
		c.SlaveID = 1
	}
	if c.Quantity == 0 {
		c.Quantity = 2
	}
	if c.RegisterKind == "" {
		c.RegisterKind = "holding"
	}
	if c.Decode == "" {
		c.Decode = DecodeU16
	}
	if c.LineRegex == "" {
		c.LineRegex = DefaultLineRegex
	}
	if c.Divisor == 0 {
		c.Divisor = 1
	}
	if c.Unit == "" {
		c.Unit = "kg"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	return c
}

// Validate checks the fields no default can supply.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("weighbridge: serial port is required")
	}
	switch c.Protocol {
	case "", ProtocolModbus, ProtocolASCII:
	default:
		return fmt.Errorf("weighbridge: unknown protocol %q", c.Protocol)
	}
	return nil
}

// Reading is one weight sample. When Valid is false the last poll
// failed and Value carries the previous good value (zero if there was
// none), so consumers can show a stale-but-present readout.
type Reading struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Valid     bool      `json:"valid"`
	Timestamp time.Time `json:"timestamp"`
}

// Reader abstracts one sample acquisition over the serial link.
// Implementations must make Close idempotent; closing while a Read is
// blocked must interrupt the wait.
type Reader interface {
	Open() error
	// Read returns one weight sample, already scaled into configured units.
	Read() (float64, error)
	Close() error
}

// NewReader builds the Reader matching cfg.Protocol.
func NewReader(cfg Config) (Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.withDefaults().Protocol {
	case ProtocolASCII:
		return NewASCIIReader(cfg)
	default:
		return NewModbusReader(cfg), nil
	}
}
