package serialport

import (
	"io"
	"time"
)

// MockPort implements Port for testing. Each Script entry feeds one
// Read call; an empty entry models a read timeout (zero bytes, no
// error). An entry longer than the caller's buffer carries over into
// the next call. When the script runs out Read returns ReadError, or
// io.EOF when none is set.
type MockPort struct {
	Script       [][]byte
	ReadError    error
	ReadTimeouts []time.Duration
	Closed       bool

	pos int
}

func (m *MockPort) Read(p []byte) (n int, err error) {
	if m.pos >= len(m.Script) {
		if m.ReadError != nil {
			return 0, m.ReadError
		}
		return 0, io.EOF
	}

	entry := m.Script[m.pos]
	if len(entry) == 0 {
		m.pos++
		return 0, nil
	}

	n = copy(p, entry)
	if n < len(entry) {
		m.Script[m.pos] = entry[n:]
	} else {
		m.pos++
	}
	return n, nil
}

func (m *MockPort) SetReadTimeout(t time.Duration) error {
	m.ReadTimeouts = append(m.ReadTimeouts, t)
	return nil
}

func (m *MockPort) Close() error {
	m.Closed = true
	return nil
}
