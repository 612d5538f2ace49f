package serialport

import (
	"errors"
	"testing"
)

func TestTestPortQueueAndRead(t *testing.T) {
	port := NewTestPort()
	port.QueueRead([]byte{0xA5, 0x5A, 0x05})

	buf := make([]byte, 2)
	n, err := port.Read(buf)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 2 || buf[0] != 0xA5 || buf[1] != 0x5A {
		t.Errorf("Read = %d bytes % x, want 2 bytes a5 5a", n, buf[:n])
	}

	n, err = port.Read(buf)
	if err != nil || n != 1 || buf[0] != 0x05 {
		t.Errorf("second Read = %d bytes % x err %v, want 1 byte 05", n, buf[:n], err)
	}

	// Empty queue reads like a quiet link.
	n, err = port.Read(buf)
	if n != 0 || err != nil {
		t.Errorf("empty Read = %d, %v; want 0, nil", n, err)
	}
}

func TestTestPortCapturesWrites(t *testing.T) {
	port := NewTestPort()
	if _, err := port.Write([]byte{0xA5, 0x20}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if _, err := port.Write([]byte{0xA5, 0x40}); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	got := port.Written()
	want := []byte{0xA5, 0x20, 0xA5, 0x40}
	if len(got) != len(want) {
		t.Fatalf("Written = % x, want % x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Written = % x, want % x", got, want)
		}
	}

	port.ResetWritten()
	if len(port.Written()) != 0 {
		t.Error("ResetWritten did not clear the capture buffer")
	}
}

func TestTestPortErrorsAndClose(t *testing.T) {
	port := NewTestPort()

	injected := errors.New("bus glitch")
	port.ReadError = injected
	if _, err := port.Read(make([]byte, 1)); !errors.Is(err, injected) {
		t.Errorf("Read error = %v, want injected error", err)
	}
	// Error is one-shot.
	if _, err := port.Read(make([]byte, 1)); err != nil {
		t.Errorf("Read after injected error = %v, want nil", err)
	}

	if err := port.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := port.Read(make([]byte, 1)); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Read after Close = %v, want ErrPortClosed", err)
	}
	if _, err := port.Write([]byte{0x00}); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Write after Close = %v, want ErrPortClosed", err)
	}
}
