package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends protocol events to an on-disk CBOR stream. The
// file doubles as the site's audit trail: every frame, decision, and
// turnstile transition lands here in arrival order and can be replayed
// with NewDecoder. Safe for concurrent use by the connection loops.
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileLogger opens (or creates, 0644) the event log at path and
// appends to it, so a controller restart never truncates the trail.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log appends one event to the file.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// A failed write must not take down the access controller; the
	// lane keeps deciding even if the audit disk is full.
	_ = l.encoder.Encode(event)
}

// Close closes the event log. Close is idempotent, and events logged
// after it are dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
