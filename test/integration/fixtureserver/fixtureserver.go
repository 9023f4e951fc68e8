//go:build integration

// Package fixtureserver starts SSH servers that look like the git-keeper test
// fixtures: the two images run under Docker, and an in-process server on a
// loopback port for machines without Docker.
package fixtureserver

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rwool/gkfix/engine"
	"github.com/rwool/gkfix/images"
	"github.com/rwool/gkfix/log"
	"github.com/rwool/gkfix/test/helpers/sshtest"
)

// Server is a running SSH server that accepts the keeper/keeper login.
type Server interface {
	Host() string
	Port() string
	// ContainerID is empty for servers that do not run in a container.
	ContainerID() string
}

// Kind is a type of fixture server.
type Kind uint8

// Kinds of fixture servers.
const (
	InProcess Kind = iota
	ServerImage
	DevImage
)

func (k Kind) String() string {
	switch k {
	case InProcess:
		return "InProcess"
	case ServerImage:
		return "ServerImage"
	case DevImage:
		return "DevImage"
	default:
		return "Unknown"
	}
}

const sshPort = nat.Port("22/tcp")

// SMTPStubEnv names the environment variable holding the SMTP stub path that
// the dev image needs.
const SMTPStubEnv = "GKFIX_IMAGES_SMTP_STUB"

// Start starts a server of the given kind that is stopped when the test ends.
// Tests are skipped when the server cannot run on this machine.
func Start(ctx context.Context, tb testing.TB, k Kind, logger log.Logger) Server {
	tb.Helper()

	switch k {
	case InProcess:
		return startInProcess(tb, logger)
	case ServerImage:
		return startImage(ctx, tb, images.Server, nil)
	case DevImage:
		stub := os.Getenv(SMTPStubEnv)
		if stub == "" {
			tb.Skipf("%s not set, the dev image cannot be built", SMTPStubEnv)
		}
		return startImage(ctx, tb, images.Dev, map[string]string{images.SMTPStub: stub})
	default:
		panic("unknown fixture server kind")
	}
}

type inProcess struct {
	host, port string
}

func (s *inProcess) Host() string        { return s.host }
func (s *inProcess) Port() string        { return s.port }
func (s *inProcess) ContainerID() string { return "" }

func startInProcess(tb testing.TB, logger log.Logger) Server {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("unable to create listener: %+v", err)
	}
	srv := sshtest.Start(tb, sshtest.Config{Logger: logger, Listener: l})

	host, port, err := net.SplitHostPort(srv.Addr().String())
	if err != nil {
		tb.Fatalf("unexpected listener address: %+v", err)
	}
	return &inProcess{host: host, port: port}
}

type imageServer struct {
	c          testcontainers.Container
	host, port string
}

func (s *imageServer) Host() string        { return s.host }
func (s *imageServer) Port() string        { return s.port }
func (s *imageServer) ContainerID() string { return s.c.GetContainerID() }

// RequireDocker skips the test when the docker daemon cannot be used.
func RequireDocker(tb testing.TB) {
	tb.Helper()

	if !engine.CommandExists("docker") {
		tb.Skip("docker is not installed")
	}
	if err := engine.CheckAccess([]string{"docker"}); err != nil {
		tb.Skipf("docker is not usable: %v", err)
	}
	if !providerAvailable() {
		tb.Skip("no container provider available")
	}
}

// providerAvailable guards against the provider lookup panicking when no
// daemon is reachable.
func providerAvailable() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return provider.Health(ctx) == nil
}

func startImage(ctx context.Context, tb testing.TB, name string, files map[string]string) Server {
	tb.Helper()
	RequireDocker(tb)

	s, err := runImage(ctx, tb, name, files)
	if err != nil {
		tb.Fatalf("unable to start %s image: %+v", name, err)
	}
	return s
}

func runImage(ctx context.Context, tb testing.TB, name string, files map[string]string) (*imageServer, error) {
	r, err := images.Lookup(name)
	if err != nil {
		return nil, err
	}

	dir := tb.TempDir()
	if err := images.WriteContext(dir, r, files); err != nil {
		return nil, err
	}

	req := testcontainers.ContainerRequest{
		FromDockerfile: testcontainers.FromDockerfile{
			Context:    dir,
			Dockerfile: "Dockerfile",
			Repo:       "gkfix-integration",
			Tag:        r.Name,
			KeepImage:  true,
		},
		ExposedPorts: []string{string(sshPort)},
		WaitingFor:   wait.ForListeningPort(sshPort).WithStartupTimeout(5 * time.Minute),
	}
	if r.Privileged {
		req.HostConfigModifier = func(hc *container.HostConfig) {
			hc.Privileged = true
		}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(tb, c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to run container")
	}

	host, err := c.Host(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get container host")
	}
	port, err := c.MappedPort(ctx, sshPort)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get mapped SSH port")
	}
	return &imageServer{c: c, host: host, port: port.Port()}, nil
}
