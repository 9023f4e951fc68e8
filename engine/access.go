package engine

import (
	"net/url"
	"os"
	"os/exec"
	"os/user"
	"runtime"

	"github.com/pkg/errors"
)

// CommandExists reports whether cmd can be found in PATH.
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// ErrNoDockerAccess is the cause returned by CheckAccess when the user
// cannot reach the local daemon socket.
var ErrNoDockerAccess = errors.New("user not in docker group")

type accessEnv struct {
	goos   string
	getenv func(string) string
	user   func() (*user.User, error)
	groups func(*user.User) ([]string, error)
}

var hostAccess = accessEnv{
	goos:   runtime.GOOS,
	getenv: os.Getenv,
	user:   user.Current,
	groups: groupNames,
}

func groupNames(u *user.User) ([]string, error) {
	gids, err := u.GroupIds()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, gid := range gids {
		if g, err := user.LookupGroupId(gid); err == nil {
			names = append(names, g.Name)
		}
	}
	return names, nil
}

// CheckAccess reports whether docker, the configured docker command, can be
// expected to reach the daemon. Commands run through sudo, daemons reached
// over the network, non-linux hosts, root and members of the docker group
// pass.
func CheckAccess(docker []string) error {
	return hostAccess.check(docker)
}

func (e accessEnv) check(docker []string) error {
	if len(docker) > 0 && docker[0] == "sudo" {
		return nil
	}
	if host := e.getenv("DOCKER_HOST"); host != "" {
		if u, err := url.Parse(host); err == nil && u.Scheme != "unix" {
			return nil
		}
	}
	if e.goos != "linux" {
		// Docker Desktop installs are assumed to be working.
		return nil
	}

	u, err := e.user()
	if err != nil {
		return errors.Wrap(err, "unable to check Docker usability")
	}
	if u.Uid == "0" {
		return nil
	}
	names, err := e.groups(u)
	if err != nil {
		return errors.Wrap(err, "unable to check Docker usability")
	}
	for _, n := range names {
		if n == "docker" {
			return nil
		}
	}
	return errors.WithStack(ErrNoDockerAccess)
}
