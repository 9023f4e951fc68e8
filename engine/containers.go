package engine

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/log"
)

// Containers starts and removes the fixture container with the docker
// command line tool.
type Containers struct {
	Logger log.Logger
	Runner Runner
	Docker []string
}

// RunOptions describes the container to start.
type RunOptions struct {
	Name       string
	Image      string
	Privileged bool
}

func (c *Containers) docker(args ...string) []string {
	return append(append([]string(nil), c.Docker...), args...)
}

// Up starts a detached container with all exposed ports published to random
// host ports and returns its ID.
func (c *Containers) Up(ctx context.Context, o RunOptions) (string, error) {
	args := []string{"run", "-d", "--name", o.Name, "-P"}
	if o.Privileged {
		args = append(args, "--privileged")
	}
	args = append(args, o.Image)

	out, err := Output(ctx, c.Runner, c.docker(args...)...)
	if err != nil {
		return "", errors.Wrapf(err, "unable to start container %s", o.Name)
	}
	id := strings.TrimSpace(string(out))
	c.Logger.WithField("container", o.Name).Infof("started %s from %s", id, o.Image)
	return id, nil
}

// Down forcibly removes the container.
func (c *Containers) Down(ctx context.Context, name string) error {
	if _, err := Output(ctx, c.Runner, c.docker("rm", "-f", name)...); err != nil {
		return errors.Wrapf(err, "unable to remove container %s", name)
	}
	c.Logger.WithField("container", name).Info("removed")
	return nil
}
