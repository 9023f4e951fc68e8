package fixture

import (
	"errors"
	"net"

	"github.com/kballard/go-shellquote"
)

// ErrUsage indicates that the login helper did not get exactly four
// arguments.
var ErrUsage = errors.New("expected exactly four arguments: host, port, user, password")

// Target is one SSH login: where to connect and with which credentials.
//
// Values are used as given. In particular the port is not checked to be
// numeric, so malformed values reach the SSH client unchanged.
type Target struct {
	Host     string
	Port     string
	User     string
	Password string
}

// ParseTarget builds a Target from positional arguments in the order host,
// port, user, password.
func ParseTarget(args []string) (Target, error) {
	if len(args) != 4 {
		return Target{}, ErrUsage
	}
	return Target{
		Host:     args[0],
		Port:     args[1],
		User:     args[2],
		Password: args[3],
	}, nil
}

// Args returns the positional arguments that ParseTarget accepts.
func (t Target) Args() []string {
	return []string{t.Host, t.Port, t.User, t.Password}
}

// Invocation returns the command line that runs helper for t. Each value is
// quoted so it stays a single word.
func (t Target) Invocation(helper string) string {
	return helper + " " + shellquote.Join(t.Args()...)
}

// Address returns the host and port joined for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// String returns the target without its password.
func (t Target) String() string {
	return t.User + "@" + t.Address()
}
