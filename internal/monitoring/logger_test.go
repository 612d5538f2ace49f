package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerCaptures(t *testing.T) {
	defer Reset()

	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})

	Logf("hello %d", 42)

	if len(captured) != 1 || captured[0] != "hello 42" {
		t.Errorf("captured = %v, want [hello 42]", captured)
	}
}

func TestSetLoggerNilIsNoop(t *testing.T) {
	defer Reset()

	SetLogger(nil)
	// Must not panic.
	Logf("dropped %s", "message")
}

func TestResetRestoresDefault(t *testing.T) {
	var captured []string
	SetLogger(func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	})
	Reset()

	Logf("not captured")
	if len(captured) != 0 {
		t.Errorf("captured = %v, want none after Reset", captured)
	}
}
