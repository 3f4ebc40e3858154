// Package serialport provides the byte stream the logger reads frames
// from: the real AX-178 serial link and a scripted stand-in for tests.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port defines the minimal interface the frame reader needs from a
// serial device: reads bounded by an adjustable timeout and a Close
// releasing the line.
type Port interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// The meter transmits at 2400 baud, 8 data bits, no parity, 1 stop bit.
const baudRate = 2400

// Open opens the named serial device with the AX-178 line parameters.
func Open(path string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// Fill reads into buf until it is full or the port stays quiet for one
// read timeout window. A serial read returns zero bytes without error
// when the timeout expires, so n < len(buf) means the line went silent
// mid-buffer. Read errors are returned as is.
func Fill(p Port, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := p.Read(buf[got:])
		got += n
		if err != nil {
			return got, err
		}
		if n == 0 {
			break
		}
	}
	return got, nil
}
