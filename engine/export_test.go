package engine

import (
	"os/user"

	"github.com/rwool/gkfix/log"
)

var DaemonHostIP = daemonHostIP

func NewAPIWithClient(logger log.Logger, c apiClient) *API {
	return &API{logger: logger, client: c}
}

// CheckAccessAs runs CheckAccess for a fake user on a fake host.
func CheckAccessAs(goos, dockerHost, uid string, groups []string, docker []string) error {
	e := accessEnv{
		goos:   goos,
		getenv: func(string) string { return dockerHost },
		user:   func() (*user.User, error) { return &user.User{Uid: uid, Username: "keeper"}, nil },
		groups: func(*user.User) ([]string, error) { return groups, nil },
	}
	return e.check(docker)
}
