// Modbus-probe scans a Modbus RTU device for responsive unit/address/
// count combinations and prints every plausible decoding of the
// registers it finds. Use it to discover where a scale publishes its
// weight before configuring the station.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/modbus"

	"github.com/weighcam/weighstation/pkg/weighbridge"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB0", "serial port, e.g. /dev/ttyUSB0 or COM3")
	baudrate := flag.Int("baudrate", 9600, "baud rate")
	parity := flag.String("parity", "N", "parity: N, E or O")
	stopbits := flag.Int("stopbits", 1, "stop bits: 1 or 2")
	bytesize := flag.Int("bytesize", 8, "byte size: 7 or 8")
	timeout := flag.Duration("timeout", time.Second, "request timeout")
	units := flag.String("units", "1", "unit IDs: list or range, e.g. 1 or 1,2,3 or 1-10")
	addrRange := flag.String("addr-range", "0-20", "address range to scan, e.g. 0-200")
	counts := flag.String("counts", "1,2,4,8", "register counts to try")
	delay := flag.Duration("delay", 50*time.Millisecond, "delay between requests")
	kind := flag.String("kind", "holding", "register type: holding or input")
	flag.Parse()

	unitIDs, err := parseUnits(*units)
	if err != nil {
		fatalf("units: %v", err)
	}
	addrLo, addrHi, err := parseRange(*addrRange)
	if err != nil {
		fatalf("addr-range: %v", err)
	}
	countList, err := parseCounts(*counts)
	if err != nil {
		fatalf("counts: %v", err)
	}

	handler := modbus.NewRTUClientHandler(*port)
	handler.BaudRate = *baudrate
	handler.DataBits = *bytesize
	handler.Parity = strings.ToUpper(*parity)
	handler.StopBits = *stopbits
	handler.Timeout = *timeout

	if err := handler.Connect(); err != nil {
		fatalf("connect %s @ %d: %v", *port, *baudrate, err)
	}
	defer handler.Close()
	client := modbus.NewClient(handler)

	fmt.Printf("Connected on %s. Scanning units=%v addr=%d-%d counts=%v kind=%s\n",
		*port, unitIDs, addrLo, addrHi, countList, *kind)

	hits := 0
	for _, unit := range unitIDs {
		handler.SlaveId = byte(unit)
		for addr := addrLo; addr <= addrHi; addr++ {
			for _, count := range countList {
				data, err := read(client, *kind, uint16(addr), uint16(count))
				if err == nil && len(data) > 0 {
					regs := weighbridge.Registers(data)
					fmt.Printf("OK unit=%d addr=%d count=%d -> %v | %s\n",
						unit, addr, count, head(regs, 6), candidates(regs))
					hits++
				}
				time.Sleep(*delay)
			}
		}
	}
	fmt.Printf("Done: %d responsive register blocks\n", hits)
}

func read(client modbus.Client, kind string, addr, count uint16) ([]byte, error) {
	if kind == "input" {
		return client.ReadInputRegisters(addr, count)
	}
	return client.ReadHoldingRegisters(addr, count)
}

// candidates renders every decoding a scale is likely to use.
func candidates(regs []uint16) string {
	parts := []string{
		fmt.Sprintf("u16=%v", head(weighbridge.DecodeAll(weighbridge.DecodeU16, regs), 6)),
		fmt.Sprintf("s16=%v", head(weighbridge.DecodeAll(weighbridge.DecodeS16, regs), 6)),
	}
	if len(regs) >= 2 {
		parts = append(parts,
			fmt.Sprintf("u32_BE=%v", head(weighbridge.DecodeAll(weighbridge.DecodeU32BE, regs), 3)),
			fmt.Sprintf("u32_LE=%v", head(weighbridge.DecodeAll(weighbridge.DecodeU32LE, regs), 3)),
			fmt.Sprintf("s32_BE=%v", head(weighbridge.DecodeAll(weighbridge.DecodeS32BE, regs), 3)),
			fmt.Sprintf("s32_LE=%v", head(weighbridge.DecodeAll(weighbridge.DecodeS32LE, regs), 3)),
		)
	}
	return strings.Join(parts, " | ")
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func parseUnits(s string) ([]int, error) {
	var units []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			lo, hi, err := parseRange(part)
			if err != nil {
				return nil, err
			}
			for u := lo; u <= hi; u++ {
				units = append(units, u)
			}
			continue
		}
		u, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no unit IDs in %q", s)
	}
	return units, nil
}

func parseRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("range %q must be lo-hi", s)
	}
	l, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, err
	}
	return l, h, nil
}

func parseCounts(s string) ([]int, error) {
	var counts []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("no counts in %q", s)
	}
	return counts, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
