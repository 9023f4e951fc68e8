// Package blockingreader implements an io.Reader that holds back all reads
// until it is released, like a remote shell that has not printed anything yet.
package blockingreader

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned from reads once the reader was closed without being
// released.
var ErrClosed = errors.New("blocking reader closed")

// Reader blocks every Read until Release or Close is called.
type Reader struct {
	r io.Reader

	mu       sync.Mutex
	gate     chan struct{}
	released bool
	closed   bool
}

// New wraps r.
func New(r io.Reader) *Reader {
	return &Reader{r: r, gate: make(chan struct{})}
}

// Read waits for the gate to open and then reads from the wrapped reader.
func (br *Reader) Read(p []byte) (int, error) {
	<-br.gate

	br.mu.Lock()
	closed := br.closed
	br.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return br.r.Read(p)
}

// Release lets pending and future reads through to the wrapped reader.
func (br *Reader) Release() {
	br.open(false)
}

// Close fails pending and future reads with ErrClosed. It has no effect after
// Release.
func (br *Reader) Close() error {
	br.open(true)
	return nil
}

func (br *Reader) open(closing bool) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.released || br.closed {
		return
	}
	if closing {
		br.closed = true
	} else {
		br.released = true
	}
	close(br.gate)
}
