// Serial-sniff dumps raw serial traffic as hex plus printable ASCII.
// Useful for working out what framing an unknown scale emits before
// picking a weighbridge protocol and line regex.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB0", "serial port, e.g. /dev/ttyUSB0 or COM3")
	baudrate := flag.Int("baudrate", 9600, "baud rate")
	bytesize := flag.Int("bytesize", 8, "byte size: 7 or 8")
	parity := flag.String("parity", "N", "parity: N, E or O")
	stopbits := flag.Int("stopbits", 1, "stop bits: 1 or 2")
	timeout := flag.Duration("timeout", 500*time.Millisecond, "read timeout")
	newline := flag.Bool("newline", false, "print a blank line between read chunks")
	flag.Parse()

	mode := &serial.Mode{
		BaudRate: *baudrate,
		DataBits: *bytesize,
		Parity:   parityMode(*parity),
		StopBits: stopBitsMode(*stopbits),
	}

	p, err := serial.Open(*port, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *port, err)
		os.Exit(1)
	}
	defer p.Close()
	p.SetReadTimeout(*timeout)

	fmt.Printf("Opened %s @ %d,%d%s%d\n", *port, *baudrate, *bytesize, strings.ToUpper(*parity), *stopbits)
	fmt.Println("Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		p.Close()
		fmt.Println("Closed")
		os.Exit(0)
	}()

	buf := make([]byte, 256)
	for {
		n, err := p.Read(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		if n == 0 {
			continue // read timeout, keep listening
		}
		fmt.Printf("HEX: %s\n", hexDump(buf[:n]))
		fmt.Printf("ASCII: %s\n", asciiDump(buf[:n]))
		if *newline {
			fmt.Println()
		}
	}
}

func hexDump(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02x", b)
	}
	return strings.Join(parts, " ")
}

// asciiDump keeps printable characters plus tab/CR/LF, dots the rest.
func asciiDump(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		if (b >= 32 && b < 127) || b == '\t' || b == '\n' || b == '\r' {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
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
