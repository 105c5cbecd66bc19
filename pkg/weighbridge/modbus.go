package weighbridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"
)

// ErrReaderClosed is returned by Read after the reader is closed.
var ErrReaderClosed = errors.New("weighbridge: reader closed")

// ModbusReader polls one register block per Read over Modbus RTU.
type ModbusReader struct {
	cfg Config

	mu      sync.Mutex
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// NewModbusReader creates an unopened Modbus RTU reader.
func NewModbusReader(cfg Config) *ModbusReader {
	return &ModbusReader{cfg: cfg.withDefaults()}
}

// Open connects the RTU handler.
func (r *ModbusReader) Open() error {
	h := modbus.NewRTUClientHandler(r.cfg.Port)
	h.BaudRate = r.cfg.BaudRate
	h.DataBits = r.cfg.DataBits
	h.Parity = r.cfg.Parity
	h.StopBits = r.cfg.StopBits
	h.SlaveId = r.cfg.SlaveID
	h.Timeout = r.cfg.Timeout

	if err := h.Connect(); err != nil {
		return fmt.Errorf("modbus connect %s: %w", r.cfg.Port, err)
	}

	r.mu.Lock()
	if r.handler != nil {
		r.handler.Close()
	}
	r.handler = h
	r.client = modbus.NewClient(h)
	r.mu.Unlock()
	return nil
}

// Read issues one register read and decodes it per the configured
// layout and divisor. A timeout surfaces as an error and counts as one
// failed poll; it does not tear the connection down by itself.
func (r *ModbusReader) Read() (float64, error) {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client == nil {
		return 0, ErrReaderClosed
	}

	var data []byte
	var err error
	switch r.cfg.RegisterKind {
	case "input":
		data, err = client.ReadInputRegisters(r.cfg.Address, r.cfg.Quantity)
	default:
		data, err = client.ReadHoldingRegisters(r.cfg.Address, r.cfg.Quantity)
	}
	if err != nil {
		return 0, fmt.Errorf("modbus read addr=%d count=%d: %w", r.cfg.Address, r.cfg.Quantity, err)
	}

	raw, err := DecodeValue(r.cfg.Decode, Registers(data))
	if err != nil {
		return 0, err
	}
	return float64(raw) / r.cfg.Divisor, nil
}

// Close releases the serial handle. Idempotent.
func (r *ModbusReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handler == nil {
		return nil
	}
	err := r.handler.Close()
	r.handler = nil
	r.client = nil
	return err
}
