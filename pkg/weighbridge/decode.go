package weighbridge

import "errors"

// Decode selects how raw Modbus registers are interpreted as a number.
// Scales disagree on register layout; these cover the layouts seen in
// the field (see cmd/modbus-probe for discovering the right one).
type Decode string

const (
	// DecodeU16 reads the first register as an unsigned 16-bit value.
	DecodeU16 Decode = "u16"
	// DecodeS16 reads the first register as a signed 16-bit value.
	DecodeS16 Decode = "s16"
	// DecodeU32BE combines register pairs high-word-first, unsigned.
	DecodeU32BE Decode = "u32be"
	// DecodeU32LE combines register pairs low-word-first, unsigned.
	DecodeU32LE Decode = "u32le"
	// DecodeS32BE combines register pairs high-word-first, signed.
	DecodeS32BE Decode = "s32be"
	// DecodeS32LE combines register pairs low-word-first, signed.
	DecodeS32LE Decode = "s32le"
)

// ErrNoRegisters is returned when a response holds too few registers
// for the requested decoding.
var ErrNoRegisters = errors.New("weighbridge: response holds no decodable registers")

// Registers splits a Modbus response payload into 16-bit registers
// (registers are transmitted big-endian).
func Registers(data []byte) []uint16 {
	regs := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		regs = append(regs, uint16(data[i])<<8|uint16(data[i+1]))
	}
	return regs
}

// DecodeAll interprets every value the registers hold under kind.
// 32-bit kinds consume registers pairwise; a trailing odd register is
// ignored.
func DecodeAll(kind Decode, regs []uint16) []int64 {
	switch kind {
	case DecodeS16:
		out := make([]int64, len(regs))
		for i, r := range regs {
			out[i] = int64(int16(r))
		}
		return out
	case DecodeU32BE, DecodeU32LE, DecodeS32BE, DecodeS32LE:
		out := make([]int64, 0, len(regs)/2)
		for i := 0; i+1 < len(regs); i += 2 {
			hi, lo := regs[i], regs[i+1]
			if kind == DecodeU32LE || kind == DecodeS32LE {
				hi, lo = lo, hi
			}
			u := uint32(hi)<<16 | uint32(lo)
			if kind == DecodeS32BE || kind == DecodeS32LE {
				out = append(out, int64(int32(u)))
			} else {
				out = append(out, int64(u))
			}
		}
		return out
	default: // DecodeU16
		out := make([]int64, len(regs))
		for i, r := range regs {
			out[i] = int64(r)
		}
		return out
	}
}

// DecodeValue returns the first value the registers hold under kind.
func DecodeValue(kind Decode, regs []uint16) (int64, error) {
	values := DecodeAll(kind, regs)
	if len(values) == 0 {
		return 0, ErrNoRegisters
	}
	return values[0], nil
}
