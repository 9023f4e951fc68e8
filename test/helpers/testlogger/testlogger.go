// Package testlogger sends log output to the log of the running test.
package testlogger

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rwool/gkfix/log"
)

// Buffer collects terminal or log output written from other goroutines.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// String returns everything written so far.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Bytes returns a copy of everything written so far.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// Reset discards everything written so far.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// WaitFor polls until s has been written or ctx is done, and reports whether
// s showed up.
func (b *Buffer) WaitFor(ctx context.Context, s string) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if strings.Contains(b.String(), s) {
			return true
		}
		select {
		case <-ctx.Done():
			return strings.Contains(b.String(), s)
		case <-ticker.C:
		}
	}
}

// testWriter copies every log entry to the buffer and the test log.
type testWriter struct {
	tb  testing.TB
	buf *Buffer
}

func (tw *testWriter) Write(p []byte) (int, error) {
	tw.tb.Helper()
	n, err := tw.buf.Write(p)
	if err != nil {
		return n, err
	}
	tw.tb.Log(strings.TrimRight(string(p), "\n"))
	return n, nil
}

// NewTestLogger creates a logger that writes to the test log. The returned
// buffer holds the same output for assertions.
func NewTestLogger(tb testing.TB, level log.Level) (log.Logger, *Buffer) {
	buf := &Buffer{}
	return log.NewLogger(&testWriter{tb: tb, buf: buf}, level), buf
}
