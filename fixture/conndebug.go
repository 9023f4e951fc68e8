package fixture

import (
	"context"
	"net"
	"sync"

	"github.com/rwool/gkfix/log"
)

// debugDialer logs dials and connection teardown.
type debugDialer struct {
	Dialer
	logger log.Logger
}

func (dd *debugDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dd.logger.Debugf("dialing %s %s", network, address)
	c, err := dd.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return &debugConn{Conn: c, logger: dd.logger, address: address}, nil
}

// debugConn closes the underlying connection once. The SSH client closes its
// connection from more than one goroutine, and later calls get the result
// of the first.
type debugConn struct {
	net.Conn
	logger  log.Logger
	address string

	once     sync.Once
	closeErr error
}

func (dc *debugConn) Close() error {
	dc.once.Do(func() {
		dc.closeErr = dc.Conn.Close()
		if dc.closeErr != nil {
			dc.logger.Debugf("error closing connection to %s: %+v", dc.address, dc.closeErr)
			return
		}
		dc.logger.Debugf("closed connection to %s", dc.address)
	})
	return dc.closeErr
}
