// Package clientserverpair provides an in-memory dialer and listener pair for
// running SSH clients against test servers without opening ports.
//
// Unlike net.Pipe, writes are buffered and never block, so both ends of a
// protocol may send their greeting at the same time (as SSH does).
package clientserverpair

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rwool/gkfix/log"
)

var (
	// ErrClosed indicates that there was an attempt to use a closed connection.
	ErrClosed = errors.New("conn: use of closed connection")
	// ErrListenerClosed indicates that there was an attempt to use a closed
	// listener.
	ErrListenerClosed = errors.New("listener closed")
)

var lastPairID int64

// Config configures a pair created by New.
type Config struct {
	// Logger receives transfer sizes at the debug level when Trace is set.
	Logger log.Logger
	Trace  bool
}

// tracedConn logs the size of every transfer.
type tracedConn struct {
	net.Conn
	logger log.Logger
}

func (tc *tracedConn) Read(p []byte) (int, error) {
	n, err := tc.Conn.Read(p)
	tc.logger.Debugf("read %d bytes, err: %v", n, err)
	return n, err
}

func (tc *tracedConn) Write(p []byte) (int, error) {
	n, err := tc.Conn.Write(p)
	tc.logger.Debugf("wrote %d bytes, err: %v", n, err)
	return n, err
}

// Listener is the server side of the pair.
type Listener struct {
	connC <-chan net.Conn
	doneC chan struct{}
	once  sync.Once
}

// Accept returns the server side of the next dialed connection.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connC:
		return conn, nil
	case <-l.doneC:
		return nil, ErrListenerClosed
	}
}

// Close stops Accept and DialContext. Connections that were already accepted
// are not affected.
func (l *Listener) Close() error {
	l.once.Do(func() { close(l.doneC) })
	return nil
}

// Addr returns the address every pipe connection reports.
func (l *Listener) Addr() net.Addr {
	return pipeAddr
}

// Dialer is the client side of the pair.
type Dialer struct {
	connC chan<- net.Conn
	doneC <-chan struct{}
	conf  Config
}

// DialContext creates a connection whose server side is handed to the next
// Accept call. It blocks until the listener accepts, the listener is closed,
// or ctx is done. The network and address are ignored.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c, s := newConnPair(1 << 10)
	client, server := net.Conn(c), net.Conn(s)

	if d.conf.Trace {
		id := atomic.AddInt64(&lastPairID, 1)
		client = &tracedConn{Conn: c, logger: d.conf.Logger.WithField("pipe", id).WithField("side", "client")}
		server = &tracedConn{Conn: s, logger: d.conf.Logger.WithField("pipe", id).WithField("side", "server")}
	}

	select {
	case d.connC <- server:
		return client, nil
	case <-d.doneC:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// New creates a connected dialer and listener.
func New(conf *Config) (*Dialer, *Listener) {
	connC := make(chan net.Conn)
	doneC := make(chan struct{})

	c := Config{}
	if conf != nil {
		c = *conf
	}
	if c.Logger == nil {
		c.Logger = log.Discard()
	}

	return &Dialer{connC: connC, doneC: doneC, conf: c},
		&Listener{connC: connC, doneC: doneC}
}
