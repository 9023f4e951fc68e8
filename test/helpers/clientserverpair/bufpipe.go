package clientserverpair

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// pipeBuffer is one direction of a connection pair.
//
// Reads block until data is available or the buffer is closed, which is what
// bufio based protocol readers expect. Writes never block.
type pipeBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newPipeBuffer(size int) *pipeBuffer {
	pb := &pipeBuffer{}
	pb.buf.Grow(size)
	pb.cond = sync.NewCond(&pb.mu)
	return pb
}

func (pb *pipeBuffer) read(p []byte) (int, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	for pb.buf.Len() == 0 && !pb.closed {
		pb.cond.Wait()
	}
	if pb.buf.Len() == 0 {
		return 0, io.EOF
	}
	return pb.buf.Read(p)
}

func (pb *pipeBuffer) write(p []byte) (int, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := pb.buf.Write(p)
	pb.cond.Broadcast()
	return n, err
}

func (pb *pipeBuffer) close() {
	pb.mu.Lock()
	pb.closed = true
	pb.cond.Broadcast()
	pb.mu.Unlock()
}

func newConnPair(bufSize int) (*pipeConn, *pipeConn) {
	cToS := newPipeBuffer(bufSize)
	sToC := newPipeBuffer(bufSize)

	client := &pipeConn{in: sToC, out: cToS}
	server := &pipeConn{in: cToS, out: sToC}
	return client, server
}

type pipeConn struct {
	in, out *pipeBuffer
	closed  uint32
}

func (pc *pipeConn) isClosed() bool {
	return atomic.LoadUint32(&pc.closed) == 1
}

func (pc *pipeConn) Read(b []byte) (n int, err error) {
	if pc.isClosed() {
		return 0, ErrClosed
	}
	return pc.in.read(b)
}

func (pc *pipeConn) Write(b []byte) (n int, err error) {
	if pc.isClosed() {
		return 0, ErrClosed
	}
	return pc.out.write(b)
}

// Close closes the connection. The peer sees io.EOF once it has drained what
// was already written.
//
// Any future calls to methods of this object will return ErrClosed.
func (pc *pipeConn) Close() error {
	if !atomic.CompareAndSwapUint32(&pc.closed, 0, 1) {
		return ErrClosed
	}
	pc.in.close()
	pc.out.close()
	return nil
}

var pipeAddr = &net.TCPAddr{
	IP:   net.IPv4(127, 0, 0, 1),
	Port: 22,
}

func (pc *pipeConn) LocalAddr() net.Addr {
	return pipeAddr
}

func (pc *pipeConn) RemoteAddr() net.Addr {
	return pipeAddr
}

// Deadlines are accepted and ignored.

func (pc *pipeConn) SetDeadline(t time.Time) error {
	if pc.isClosed() {
		return ErrClosed
	}
	return nil
}

func (pc *pipeConn) SetReadDeadline(t time.Time) error {
	return pc.SetDeadline(t)
}

func (pc *pipeConn) SetWriteDeadline(t time.Time) error {
	return pc.SetDeadline(t)
}
