// Package expect waits for a pattern to show up in a byte stream before the
// stream is handed over to its final consumer.
//
// Output read while waiting is passed through as it arrives, except for a
// short tail that could still be the start of the pattern.
package expect

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/log"
)

const readSize = 4 << 10

type chunk struct {
	data []byte
	err  error
}

// Expecter reads from a source in the background and allows waiting for
// patterns in what was read.
//
// An Expecter is not safe for concurrent use. After the last Expect call, the
// Expecter itself is the reader for the rest of the stream.
type Expecter struct {
	logger log.Logger
	out    io.Writer

	chunkC chan chunk
	doneC  chan struct{}
	once   sync.Once

	// pending holds bytes that were read but not yet passed on.
	pending []byte
	err     error

	foldCase bool
}

// New starts reading from r. Anything read before a pattern match, and the
// match itself, is written to passthrough, which may be nil.
func New(logger log.Logger, r io.Reader, passthrough io.Writer) *Expecter {
	if logger == nil {
		panic("nil logger")
	}
	if passthrough == nil {
		passthrough = io.Discard
	}

	e := &Expecter{
		logger: logger,
		out:    passthrough,
		chunkC: make(chan chunk),
		doneC:  make(chan struct{}),
	}
	go e.pump(r)
	return e
}

// SetFoldCase enables ASCII case-insensitive matching.
func (e *Expecter) SetFoldCase(fold bool) {
	e.foldCase = fold
}

func (e *Expecter) pump(r io.Reader) {
	defer close(e.chunkC)
	for {
		buf := make([]byte, readSize)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case e.chunkC <- chunk{data: buf[:n]}:
			case <-e.doneC:
				return
			}
		}
		if err != nil {
			select {
			case e.chunkC <- chunk{err: err}:
			case <-e.doneC:
			}
			return
		}
	}
}

// Expect blocks until pattern has been read, the stream ends, or ctx is done.
// On failure everything read so far has been passed through.
//
// There is no timeout besides the one ctx carries.
func (e *Expecter) Expect(ctx context.Context, pattern string) error {
	if pattern == "" {
		return nil
	}
	pat := []byte(pattern)
	if e.foldCase {
		pat = asciiLower(pat)
	}

	for {
		if i := e.index(pat); i >= 0 {
			end := i + len(pat)
			if err := e.flush(end); err != nil {
				return err
			}
			e.logger.Debugf("matched %q", pattern)
			return nil
		}

		// Everything except a possible partial match can be passed on.
		if keep := len(pat) - 1; len(e.pending) > keep {
			if err := e.flush(len(e.pending) - keep); err != nil {
				return err
			}
		}

		// Once there can be no match, the held back tail is output like the
		// rest.
		if e.err != nil {
			if err := e.flush(len(e.pending)); err != nil {
				return err
			}
			return errors.Wrapf(e.err, "stream ended while waiting for %q", pattern)
		}

		select {
		case <-ctx.Done():
			if err := e.flush(len(e.pending)); err != nil {
				return err
			}
			return errors.Wrapf(ctx.Err(), "stopped waiting for %q", pattern)
		case c, ok := <-e.chunkC:
			e.receive(c, ok)
		}
	}
}

func (e *Expecter) receive(c chunk, ok bool) {
	switch {
	case !ok:
		e.err = io.EOF
	case c.err != nil:
		e.err = c.err
	default:
		e.pending = append(e.pending, c.data...)
	}
}

func (e *Expecter) index(pat []byte) int {
	if e.foldCase {
		return bytes.Index(asciiLower(e.pending), pat)
	}
	return bytes.Index(e.pending, pat)
}

// flush writes the first n pending bytes to the passthrough writer.
func (e *Expecter) flush(n int) error {
	_, err := e.out.Write(e.pending[:n])
	e.pending = append(e.pending[:0], e.pending[n:]...)
	return errors.Wrap(err, "unable to pass output through")
}

// Read returns the stream data that follows the last match.
func (e *Expecter) Read(p []byte) (int, error) {
	for len(e.pending) == 0 {
		if e.err != nil {
			return 0, e.err
		}
		c, ok := <-e.chunkC
		e.receive(c, ok)
	}

	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	return n, nil
}

// Close stops the background reader. The source itself is not closed, so the
// reader goroutine only exits once the source returns from its current Read.
func (e *Expecter) Close() error {
	e.once.Do(func() { close(e.doneC) })
	return nil
}

func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
