package engine

import (
	"context"
	"net"
	"net/url"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"

	"github.com/rwool/gkfix/log"
)

// apiClient is the part of the Docker client used by API.
type apiClient interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	DaemonHost() string
	Close() error
}

// API resolves through the Docker Engine API.
type API struct {
	logger log.Logger
	client apiClient
}

// NewAPI creates a client configured from the DOCKER_* environment
// variables. The options are applied after the environment.
func NewAPI(logger log.Logger, opts ...client.Opt) (*API, error) {
	opts = append([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}, opts...)
	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create docker client")
	}
	return &API{logger: logger, client: c}, nil
}

// HostIP returns the host part of the daemon address. Local sockets give
// LocalHost.
func (a *API) HostIP(ctx context.Context) (string, error) {
	daemon := a.client.DaemonHost()
	host, err := daemonHostIP(daemon)
	if err != nil {
		return "", err
	}
	a.logger.Debugf("daemon %s is at %q", daemon, host)
	return host, nil
}

func daemonHostIP(daemon string) (string, error) {
	u, err := url.Parse(daemon)
	if err != nil {
		return "", errors.Wrapf(err, "unable to parse daemon host %q", daemon)
	}

	switch u.Scheme {
	case "unix", "npipe":
		return LocalHost, nil
	case "tcp", "http", "https", "ssh":
		if h := u.Hostname(); h != "" {
			return h, nil
		}
		return LocalHost, nil
	default:
		return "", errors.Errorf("unsupported daemon host scheme %q", u.Scheme)
	}
}

// MappedPort returns the host port bound to the container's TCP port. IPv4
// bindings are preferred.
func (a *API) MappedPort(ctx context.Context, name string, port int) (string, error) {
	resp, err := a.client.ContainerInspect(ctx, name)
	if err != nil {
		return "", errors.Wrapf(err, "unable to inspect container %s", name)
	}
	if resp.ContainerJSONBase != nil && resp.State != nil && !resp.State.Running {
		return "", errors.Wrapf(ErrNotRunning, "container %s", name)
	}
	if resp.NetworkSettings == nil {
		return "", nil
	}

	p, err := nat.NewPort("tcp", portSpec(port))
	if err != nil {
		return "", errors.Wrap(err, "invalid port")
	}
	hostPort := pickBinding(resp.NetworkSettings.Ports[p])
	a.logger.Debugf("port %s of %s is mapped to %q", p, name, hostPort)
	return hostPort, nil
}

func pickBinding(bindings []nat.PortBinding) string {
	for _, b := range bindings {
		if ip := net.ParseIP(b.HostIP); ip == nil || ip.To4() != nil {
			return b.HostPort
		}
	}
	if len(bindings) > 0 {
		return bindings[0].HostPort
	}
	return ""
}

// Close releases the client's connections.
func (a *API) Close() error {
	return a.client.Close()
}
