// Package recursivelistener implements a Listener that closes its open
// connections when it is closed.
//
// Test SSH servers keep serving a session until its connection fails, so
// closing the listener this way shuts the whole server down.
package recursivelistener

import (
	"net"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("listener closed")

// New wraps l.
func New(l net.Listener) *Listener {
	return &Listener{
		Listener: l,
		conns:    make(map[*conn]struct{}),
	}
}

// Listener tracks the connections accepted from it.
type Listener struct {
	net.Listener

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
}

// conn forgets itself in the listener when closed.
type conn struct {
	net.Conn
	l    *Listener
	once sync.Once
}

func (c *conn) Close() error {
	c.once.Do(func() {
		c.l.mu.Lock()
		delete(c.l.conns, c)
		c.l.mu.Unlock()
	})
	return c.Conn.Close()
}

// Accept accepts a connection. A connection that arrives while Close runs is
// closed right away.
func (l *Listener) Accept() (net.Conn, error) {
	// Not locked while blocked, so that Close can run.
	nc, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		nc.Close()
		return nil, ErrClosed
	}
	c := &conn{Conn: nc, l: l}
	l.conns[c] = struct{}{}
	return c, nil
}

// Active returns the number of accepted connections that are still open.
func (l *Listener) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Close closes the listener and every open connection accepted from it.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conns := l.conns
	l.conns = make(map[*conn]struct{})
	l.mu.Unlock()

	err := errors.Wrap(l.Listener.Close(), "unable to close listener")
	for c := range conns {
		if cerr := c.Conn.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "unable to close connection")
		}
	}
	return err
}
