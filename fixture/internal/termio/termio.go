// Package termio wraps the standard streams of the process and the state of
// the terminal behind them.
package termio

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Size used when the input is not a terminal.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Terminal is a set of streams that may or may not be backed by a terminal.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	fd     int
	isTerm bool
}

// Std returns the process's standard streams.
func Std() *Terminal {
	fd := int(os.Stdin.Fd())
	return &Terminal{
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		fd:     fd,
		isTerm: term.IsTerminal(fd),
	}
}

// Streams returns a Terminal over plain streams, which never has terminal
// state to change.
func Streams(in io.Reader, out, errOut io.Writer) *Terminal {
	return &Terminal{In: in, Out: out, Err: errOut, fd: -1}
}

// IsTerminal reports whether the input is a terminal.
func (t *Terminal) IsTerminal() bool {
	return t.isTerm
}

// MakeRaw puts the terminal into raw mode. The returned function restores the
// previous state and is a no-op when the input is not a terminal.
func (t *Terminal) MakeRaw() (restore func(), err error) {
	if !t.isTerm {
		return func() {}, nil
	}

	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return nil, errors.Wrap(err, "unable to put terminal into raw mode")
	}
	return func() { _ = term.Restore(t.fd, state) }, nil
}

// Size returns the width and height of the terminal, or the defaults when
// the input is not a terminal.
func (t *Terminal) Size() (width, height int) {
	if !t.isTerm {
		return DefaultWidth, DefaultHeight
	}
	w, h, err := term.GetSize(t.fd)
	if err != nil || w <= 0 || h <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return w, h
}

// Type returns the terminal type to request for a remote pseudo-terminal.
func (t *Terminal) Type() string {
	if tt := os.Getenv("TERM"); tt != "" {
		return tt
	}
	return "xterm"
}
