package engine

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/log"
)

// CLI resolves through the docker-machine and docker command line tools.
type CLI struct {
	Logger log.Logger
	Runner Runner

	// Docker and DockerMachine are the commands that run the tools.
	Docker        []string
	DockerMachine []string

	// Machine is the docker-machine to ask for its address. When empty the
	// daemon is taken to be local.
	Machine string

	// PortOffset is where the port starts in the port lookup output.
	PortOffset int
}

// NewCLI returns a CLI resolver running the standard tools with os/exec.
func NewCLI(logger log.Logger, machine string) *CLI {
	return &CLI{
		Logger:        logger,
		Runner:        ExecRunner{Logger: logger},
		Docker:        []string{"docker"},
		DockerMachine: []string{"docker-machine"},
		Machine:       machine,
		PortOffset:    DefaultPortOffset,
	}
}

// HostIP returns the docker-machine's address, as printed by
// `docker-machine ip <machine>`.
func (c *CLI) HostIP(ctx context.Context) (string, error) {
	if c.Machine == "" {
		return LocalHost, nil
	}

	argv := append(append([]string(nil), c.DockerMachine...), "ip", c.Machine)
	out, err := Output(ctx, c.Runner, argv...)
	if err != nil {
		return "", errors.Wrap(err, "unable to get machine address")
	}
	// Like command substitution, only trailing newlines are dropped.
	ip := strings.TrimRight(string(out), "\r\n")
	c.Logger.Debugf("machine %s is at %q", c.Machine, ip)
	return ip, nil
}

// MappedPort runs `docker port <container> <port>` and extracts the host port
// from the first line of its output.
func (c *CLI) MappedPort(ctx context.Context, container string, port int) (string, error) {
	argv := append(append([]string(nil), c.Docker...), "port", container, portSpec(port))
	out, err := Output(ctx, c.Runner, argv...)
	if err != nil {
		return "", errors.Wrap(err, "unable to get port mapping")
	}
	hostPort := ExtractPort(string(out), c.PortOffset)
	c.Logger.Debugf("port %d of %s is mapped to %q", port, container, hostPort)
	return hostPort, nil
}
