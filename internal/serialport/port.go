// Package serialport abstracts the serial link to the rangefinder so the
// protocol driver can be exercised against fake hardware in tests.
package serialport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// BytePort defines the minimal interface the proximity driver needs from a
// serial port.
type BytePort interface {
	io.ReadWriter
	io.Closer
}

// DefaultBaudRate is the RPLIDAR A2 UART rate.
const DefaultBaudRate = 115200

// readTimeout bounds each Read call so the driver's tick loop drains
// whatever is buffered and returns instead of blocking on a quiet link.
const readTimeout = 5 * time.Millisecond

// Open opens the serial port at path with 8N1 framing at the given baud
// rate and a short read timeout suitable for cooperative polling.
func Open(path string, baudRate int) (BytePort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}

	return port, nil
}
