package serialport

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by TestPort operations after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestPort implements BytePort with scripted reads and captured writes.
// An empty read queue behaves like a quiet link: Read returns 0 bytes and
// no error, matching the read-timeout semantics of a real port.
type TestPort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	closed bool

	// ReadCalls and WriteCalls record call counts.
	ReadCalls  int
	WriteCalls int
}

// NewTestPort creates an empty TestPort.
func NewTestPort() *TestPort {
	return &TestPort{}
}

// Read drains queued data, returning 0 bytes without error when the queue
// is empty.
func (t *TestPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.closed {
		return 0, ErrPortClosed
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.readBuf.Len() == 0 {
		return 0, nil
	}
	return t.readBuf.Read(p)
}

// Write captures data for later inspection via Written.
func (t *TestPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.closed {
		return 0, ErrPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.writeBuf.Write(p)
}

// Close marks the port as closed.
func (t *TestPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// QueueRead appends data to be returned by subsequent Read calls.
func (t *TestPort) QueueRead(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuf.Write(data)
}

// Written returns a copy of everything written to the port so far.
func (t *TestPort) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, t.writeBuf.Len())
	copy(out, t.writeBuf.Bytes())
	return out
}

// ResetWritten clears the captured write buffer.
func (t *TestPort) ResetWritten() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeBuf.Reset()
}
