package engine_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/gkfix/engine"
	"github.com/rwool/gkfix/log"
	"github.com/rwool/gkfix/test/helpers/comperr"
	"github.com/rwool/gkfix/test/helpers/fakerunner"
	"github.com/rwool/gkfix/test/helpers/testlogger"
)

func TestExtractPort(t *testing.T) {
	tests := []struct {
		Name     string
		Out      string
		From     int
		Expected string
	}{
		{Name: "IPv4 Binding", Out: "0.0.0.0:32768\n", From: 9, Expected: "32768"},
		{Name: "No Newline", Out: "0.0.0.0:32768", From: 9, Expected: "32768"},
		{Name: "First Line Only", Out: "0.0.0.0:32768\n[::]:32768\n", From: 9, Expected: "32768"},
		{Name: "Shorter Than Offset", Out: "0.0.0.0\n", From: 9, Expected: ""},
		{Name: "Exactly Offset", Out: "0.0.0.0:\n", From: 9, Expected: ""},
		{Name: "Empty", Out: "", From: 9, Expected: ""},
		{Name: "Malformed Passed Through", Out: "Error: No public port '22/tcp'\n", From: 9, Expected: "o public port '22/tcp'"},
		{Name: "IPv6 First Line", Out: "[::]:32768\n", From: 9, Expected: "68"},
		{Name: "Offset One", Out: "32768\n", From: 1, Expected: "32768"},
		{Name: "Offset Below One", Out: "32768\n", From: 0, Expected: "32768"},
		{Name: "CRLF", Out: "0.0.0.0:32768\r\n", From: 9, Expected: "32768"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Expected, engine.ExtractPort(test.Out, test.From))
		})
	}
}

func TestParseCommand(t *testing.T) {
	words, err := engine.ParseCommand("sudo docker")
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo", "docker"}, words)

	words, err = engine.ParseCommand("'/opt/my docker/bin/docker' --tls")
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/my docker/bin/docker", "--tls"}, words)

	_, err = engine.ParseCommand("   ")
	assert.Error(t, err)

	_, err = engine.ParseCommand("'unterminated")
	assert.Error(t, err)
}

func newCLI(t *testing.T, r engine.Runner, machine string) *engine.CLI {
	logger, _ := testlogger.NewTestLogger(t, log.Debug)
	c := engine.NewCLI(logger, machine)
	c.Runner = r
	return c
}

func TestCLIHostIP(t *testing.T) {
	r := &fakerunner.Runner{
		Outputs: map[string]string{"docker-machine ip default": "192.168.99.100\n"},
	}
	c := newCLI(t, r, "default")

	ip, err := c.HostIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.168.99.100", ip)
	assert.Equal(t, []string{"docker-machine ip default"}, r.Commands())
}

func TestCLIHostIPLocal(t *testing.T) {
	r := &fakerunner.Runner{}
	c := newCLI(t, r, "")

	ip, err := c.HostIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.LocalHost, ip)
	assert.Empty(t, r.Commands())
}

func TestCLIHostIPFailure(t *testing.T) {
	cause := errors.New("exit status 1")
	r := &fakerunner.Runner{
		Errors: map[string]error{"docker-machine ip default": cause},
	}
	c := newCLI(t, r, "default")

	_, err := c.HostIP(context.Background())
	require.Error(t, err)
	comperr.AssertCause(t, cause, err)
}

func TestCLIMappedPort(t *testing.T) {
	r := &fakerunner.Runner{
		Outputs: map[string]string{"sudo docker port git-keeper-server 22": "0.0.0.0:32768\n[::]:32768\n"},
	}
	c := newCLI(t, r, "default")
	c.Docker = []string{"sudo", "docker"}

	port, err := c.MappedPort(context.Background(), "git-keeper-server", 22)
	require.NoError(t, err)
	assert.Equal(t, "32768", port)
	assert.Equal(t, []string{"sudo docker port git-keeper-server 22"}, r.Commands())
	assert.Equal(t, []string{"sudo", "docker"}, c.Docker, "configured command must not be modified")
}

func TestCLIMappedPortNoOutput(t *testing.T) {
	r := &fakerunner.Runner{}
	c := newCLI(t, r, "default")

	port, err := c.MappedPort(context.Background(), "git-keeper-server", 22)
	require.NoError(t, err)
	assert.Equal(t, "", port)
}

func TestExecRunner(t *testing.T) {
	logger, _ := testlogger.NewTestLogger(t, log.Debug)
	r := engine.ExecRunner{Logger: logger}
	ctx := context.Background()

	out, err := engine.Output(ctx, r, "sh", "-c", "echo 0.0.0.0:32768")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:32768\n", string(out))

	dir := t.TempDir()
	var pwd bytes.Buffer
	require.NoError(t, r.Run(ctx, engine.Command{Argv: []string{"pwd"}, Dir: dir, Stdout: &pwd}))
	assert.Contains(t, pwd.String(), dir)

	_, err = engine.Output(ctx, r, "sh", "-c", "echo no such container >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such container")

	assert.Error(t, r.Run(ctx, engine.Command{}))
}

func TestContainers(t *testing.T) {
	logger, _ := testlogger.NewTestLogger(t, log.Debug)
	r := &fakerunner.Runner{
		Outputs: map[string]string{
			"docker run -d --name git-keeper-server -P --privileged gkfix-dev": "abc123\n",
		},
	}
	c := &engine.Containers{Logger: logger, Runner: r, Docker: []string{"docker"}}
	ctx := context.Background()

	id, err := c.Up(ctx, engine.RunOptions{Name: "git-keeper-server", Image: "gkfix-dev", Privileged: true})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = c.Up(ctx, engine.RunOptions{Name: "git-keeper-server", Image: "gkfix-server"})
	require.NoError(t, err)

	require.NoError(t, c.Down(ctx, "git-keeper-server"))

	assert.Equal(t, []string{
		"docker run -d --name git-keeper-server -P --privileged gkfix-dev",
		"docker run -d --name git-keeper-server -P gkfix-server",
		"docker rm -f git-keeper-server",
	}, r.Commands())
}

func TestContainersDownFailure(t *testing.T) {
	logger, _ := testlogger.NewTestLogger(t, log.Debug)
	cause := errors.New("no such container")
	r := &fakerunner.Runner{Errors: map[string]error{"docker rm -f git-keeper-server": cause}}
	c := &engine.Containers{Logger: logger, Runner: r, Docker: []string{"docker"}}

	err := c.Down(context.Background(), "git-keeper-server")
	require.Error(t, err)
	comperr.AssertCause(t, cause, err)
}

func TestCheckAccess(t *testing.T) {
	docker := []string{"docker"}
	tests := []struct {
		Name       string
		GOOS       string
		DockerHost string
		UID        string
		Groups     []string
		Docker     []string
		Allowed    bool
	}{
		{Name: "Docker Group", GOOS: "linux", UID: "1000", Groups: []string{"keeper", "docker"}, Docker: docker, Allowed: true},
		{Name: "Root", GOOS: "linux", UID: "0", Docker: docker, Allowed: true},
		{Name: "Plain User", GOOS: "linux", UID: "1000", Groups: []string{"keeper"}, Docker: docker},
		{Name: "Sudo", GOOS: "linux", UID: "1000", Docker: []string{"sudo", "docker"}, Allowed: true},
		{Name: "Remote Daemon", GOOS: "linux", DockerHost: "tcp://192.168.99.100:2376", UID: "1000", Docker: docker, Allowed: true},
		{Name: "Local Socket Host", GOOS: "linux", DockerHost: "unix:///var/run/docker.sock", UID: "1000", Docker: docker},
		{Name: "Mac", GOOS: "darwin", UID: "501", Docker: docker, Allowed: true},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			err := engine.CheckAccessAs(test.GOOS, test.DockerHost, test.UID, test.Groups, test.Docker)
			if test.Allowed {
				assert.NoError(t, err)
				return
			}
			comperr.AssertCause(t, engine.ErrNoDockerAccess, err)
		})
	}
}

func TestCommandExists(t *testing.T) {
	assert.True(t, engine.CommandExists("sh"))
	assert.False(t, engine.CommandExists("gkfix-no-such-command"))
}
