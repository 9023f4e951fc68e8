// Package fixture logs into the git-keeper test server and inspects it.
//
// A Fixture runs one login at a time. Logging in either drives the system
// ssh client under a pseudo-terminal or uses a native SSH client; in both
// cases the password prompt is answered once and the terminal is then handed
// to the user.
package fixture

import (
	"context"
	"io"
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/fixture/internal/openssh"
	"github.com/rwool/gkfix/fixture/internal/sshtarget"
	"github.com/rwool/gkfix/fixture/internal/termio"
	"github.com/rwool/gkfix/log"
)

// Driver selects how a login runs SSH.
type Driver string

// Drivers.
const (
	// DriverOpenSSH runs the system ssh client under a pseudo-terminal.
	DriverOpenSSH Driver = "openssh"
	// DriverNative uses the built in SSH client.
	DriverNative Driver = "native"
)

// ParseDriver checks that s names a driver.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(s); d {
	case DriverOpenSSH, DriverNative:
		return d, nil
	default:
		return "", errors.Errorf("unknown login driver %q", s)
	}
}

// Dialer is the interface that wraps the dial method.
//
// Primarily used for abstracting out possible dialer implementations as there
// is no dialer interface in the standard library.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver finds where the fixture container's SSH server is reachable.
type Resolver interface {
	// HostIP returns the address of the host running the container engine.
	HostIP(ctx context.Context) (string, error)
	// MappedPort returns the host port that the given container port is
	// published on.
	MappedPort(ctx context.Context, container string, port int) (string, error)
}

// Process and Spawner start the ssh client for the openssh driver.
type (
	Process   = openssh.Process
	Spawner   = openssh.Spawner
	SpawnFunc = openssh.SpawnFunc
)

// Options configures a Fixture. Zero values are replaced with the defaults
// used by the git-keeper tests.
type Options struct {
	Driver    Driver
	Prompt    string
	SSHBinary string
	HostKeys  HostKeyPolicy

	// Container and ContainerPort locate the SSH server for Connect.
	Container     string
	ContainerPort int

	// User and Password are the credentials Connect logs in with.
	User     string
	Password string
}

// Defaults.
const (
	DefaultPrompt        = "password:"
	DefaultSSHBinary     = "ssh"
	DefaultContainer     = "git-keeper-server"
	DefaultContainerPort = 22
	DefaultUser          = "keeper"
	DefaultPassword      = "keeper"
)

func (o *Options) setDefaults() {
	if o.Driver == "" {
		o.Driver = DriverOpenSSH
	}
	if o.Prompt == "" {
		o.Prompt = DefaultPrompt
	}
	if o.SSHBinary == "" {
		o.SSHBinary = DefaultSSHBinary
	}
	if o.HostKeys.kind == "" {
		o.HostKeys = InsecureHostKeys
	}
	if o.Container == "" {
		o.Container = DefaultContainer
	}
	if o.ContainerPort == 0 {
		o.ContainerPort = DefaultContainerPort
	}
	if o.User == "" {
		o.User = DefaultUser
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
}

// Fixture logs into the test server.
type Fixture struct {
	mu       sync.Mutex
	logger   log.Logger
	opts     Options
	term     *termio.Terminal
	dialer   Dialer
	spawner  Spawner
	resolver Resolver
}

// New creates a Fixture that uses the process's standard streams.
//
// If the given logger is nil, then a logger will be created that writes to
// stderr.
func New(logger log.Logger, opts Options) *Fixture {
	if logger == nil {
		logger = log.NewLogger(os.Stderr, log.Warn)
	}
	opts.setDefaults()

	f := &Fixture{
		logger:  logger,
		opts:    opts,
		term:    termio.Std(),
		spawner: openssh.PTY,
	}
	f.SetDialer(&net.Dialer{})
	return f
}

// SetDialer sets the dialer used by the native driver and Emails.
func (f *Fixture) SetDialer(d Dialer) {
	if d == nil {
		panic("nil dialer")
	}

	f.mu.Lock()
	f.dialer = &debugDialer{Dialer: d, logger: f.logger}
	f.mu.Unlock()
}

// SetSpawner sets how the openssh driver starts the ssh client.
func (f *Fixture) SetSpawner(s Spawner) {
	if s == nil {
		panic("nil spawner")
	}

	f.mu.Lock()
	f.spawner = s
	f.mu.Unlock()
}

// SetResolver sets the resolver used by Connect.
func (f *Fixture) SetResolver(r Resolver) {
	f.mu.Lock()
	f.resolver = r
	f.mu.Unlock()
}

// SetStreams replaces the standard streams with plain streams that have no
// terminal behind them.
func (f *Fixture) SetStreams(in io.Reader, out, errOut io.Writer) {
	f.mu.Lock()
	f.term = termio.Streams(in, out, errOut)
	f.mu.Unlock()
}

// Connect finds the fixture container's SSH server and returns the target
// for logging into it with the configured credentials.
//
// The looked up values are not checked beyond the lookups succeeding.
func (f *Fixture) Connect(ctx context.Context) (Target, error) {
	f.mu.Lock()
	r := f.resolver
	f.mu.Unlock()
	if r == nil {
		return Target{}, errors.New("no resolver set")
	}

	host, err := r.HostIP(ctx)
	if err != nil {
		return Target{}, errors.Wrap(err, "unable to resolve engine host")
	}
	port, err := r.MappedPort(ctx, f.opts.Container, f.opts.ContainerPort)
	if err != nil {
		return Target{}, errors.Wrapf(err, "unable to resolve port %d of %s",
			f.opts.ContainerPort, f.opts.Container)
	}

	t := Target{
		Host:     host,
		Port:     port,
		User:     f.opts.User,
		Password: f.opts.Password,
	}
	f.logger.Debugf("resolved %s", t)
	return t, nil
}

// Login logs into t and hands the terminal over to the session until it
// ends. A session that exits with a non-zero status returns an *ExitError.
//
// The wait for the password prompt has no timeout besides ctx.
//
// Input is copied from the terminal by a goroutine that stays blocked in its
// Read after Login returns, until the terminal's input yields data or an
// error. Closing the input, where the caller owns it, ends that goroutine.
func (f *Fixture) Login(ctx context.Context, t Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logger.Infof("logging into %s with the %s driver", t, f.opts.Driver)
	switch f.opts.Driver {
	case DriverNative:
		return f.loginNative(ctx, t)
	default:
		return f.loginOpenSSH(ctx, t)
	}
}

func (f *Fixture) loginOpenSSH(ctx context.Context, t Target) error {
	conf := openssh.Config{
		Binary:   f.opts.SSHBinary,
		Host:     t.Host,
		Port:     t.Port,
		User:     t.User,
		Password: t.Password,
		Prompt:   f.opts.Prompt,
	}
	cleanup, err := f.opts.HostKeys.applyOpenSSH(t, &conf)
	if err != nil {
		return err
	}
	defer cleanup()

	code, err := openssh.Login(ctx, f.logger, f.spawner, f.term, conf)
	if err != nil {
		return errors.Wrapf(err, "login to %s failed (exit status %d)", t, code)
	}
	return exitErr(code)
}

// dial opens a native SSH connection to t.
func (f *Fixture) dial(ctx context.Context, t Target) (*sshtarget.SSH, error) {
	hkc, err := f.opts.HostKeys.callback()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to apply host key policy %s", f.opts.HostKeys)
	}

	conn, err := f.dialer.DialContext(ctx, "tcp", t.Address())
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial remote host")
	}

	client, err := sshtarget.NewSSH(ctx, f.logger, conn, t.Address(), hkc, t.User, f.auths(t))
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "unable to log into %s", t)
	}
	return client, nil
}
