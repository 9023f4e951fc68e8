package fixture_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	errors2 "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/gkfix/fixture"
	"github.com/rwool/gkfix/log"
	"github.com/rwool/gkfix/test/helpers/fakessh"
	"github.com/rwool/gkfix/test/helpers/goroutinechecker"
	"github.com/rwool/gkfix/test/helpers/sshtest"
	"github.com/rwool/gkfix/test/helpers/testlogger"
)

type fakeResolver struct {
	host    string
	port    string
	hostErr error
	portErr error

	container     string
	containerPort int
}

func (fr *fakeResolver) HostIP(context.Context) (string, error) {
	return fr.host, fr.hostErr
}

func (fr *fakeResolver) MappedPort(_ context.Context, container string, port int) (string, error) {
	fr.container, fr.containerPort = container, port
	return fr.port, fr.portErr
}

func TestConnect(t *testing.T) {
	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	ctx := context.Background()

	f := fixture.New(logger, fixture.Options{})
	_, err := f.Connect(ctx)
	assert.Error(t, err, "no resolver")

	r := &fakeResolver{host: "192.168.99.100", port: "32768"}
	f.SetResolver(r)

	target, err := f.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixture.Target{
		Host:     "192.168.99.100",
		Port:     "32768",
		User:     "keeper",
		Password: "keeper",
	}, target)
	assert.Equal(t, "git-keeper-server", r.container)
	assert.Equal(t, 22, r.containerPort)

	// Malformed values are passed through.
	r.port = ""
	target, err = f.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", target.Port)

	lookupErr := errors.New("docker: command not found")
	r.portErr = lookupErr
	_, err = f.Connect(ctx)
	assert.Equal(t, lookupErr, errors2.Cause(err))

	r.hostErr = lookupErr
	_, err = f.Connect(ctx)
	assert.Equal(t, lookupErr, errors2.Cause(err))
}

func TestConnectOptions(t *testing.T) {
	logger, _ := testlogger.NewTestLogger(t, log.Warn)

	f := fixture.New(logger, fixture.Options{
		Container:     "other",
		ContainerPort: 2222,
		User:          "admin",
		Password:      "hunter2",
	})
	r := &fakeResolver{host: "10.0.0.5", port: "40000"}
	f.SetResolver(r)

	target, err := f.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other", r.container)
	assert.Equal(t, 2222, r.containerPort)
	assert.Equal(t, "admin", target.User)
	assert.Equal(t, "hunter2", target.Password)
}

func TestLoginOpenSSH(t *testing.T) {
	defer goroutinechecker.New(t)()

	for _, code := range []int{0, 2} {
		logger, _ := testlogger.NewTestLogger(t, log.Warn)
		spawner := &fakessh.Spawner{Prompt: "keeper@192.168.99.100's password: ", Code: code}

		f := fixture.New(logger, fixture.Options{})
		f.SetSpawner(spawner)
		out := &testlogger.Buffer{}
		f.SetStreams(strings.NewReader(""), out, out)

		target, err := fixture.ParseTarget([]string{"192.168.99.100", "32768", "keeper", "keeper"})
		require.NoError(t, err)

		err = f.Login(context.Background(), target)
		if code == 0 {
			require.NoError(t, err)
		} else {
			var exitErr *fixture.ExitError
			require.True(t, errors.As(err, &exitErr), "got %v", err)
			assert.Equal(t, code, exitErr.Code)
		}

		spawns := spawner.Spawns()
		require.Len(t, spawns, 1, "exactly one ssh client")
		assert.Equal(t, []string{"ssh",
			"-o", "StrictHostKeyChecking=no",
			"-o", "UserKnownHostsFile=/dev/null",
			"-p", "32768", "keeper@192.168.99.100"}, spawns[0])
		assert.Equal(t, "keeper\r", spawner.Processes()[0].Input())
		assert.Contains(t, out.String(), "Welcome")
	}
}

func TestLoginNative(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	srv := sshtest.Start(t, sshtest.Config{
		Logger:              logger,
		KeyboardInteractive: true,
		ShellExit:           3,
	})
	defer srv.Close()

	f := fixture.New(logger, fixture.Options{Driver: fixture.DriverNative})
	f.SetDialer(srv.Dialer)
	out := &testlogger.Buffer{}
	f.SetStreams(strings.NewReader("hi\nexit\n"), out, out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := f.Login(ctx, fixture.Target{Host: "127.0.0.1", Port: "22", User: "keeper", Password: "keeper"})
	var exitErr *fixture.ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, 1, srv.Logins())
	assert.Contains(t, out.String(), "you said: hi")
}

func TestLoginNativeDisconnect(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	srv := sshtest.Start(t, sshtest.Config{Logger: logger})
	defer srv.Close()

	f := fixture.New(logger, fixture.Options{Driver: fixture.DriverNative})
	f.SetDialer(srv.Dialer)

	// The input stays open, so only the escape sequence ends the session.
	inR, inW := io.Pipe()
	defer inW.Close()
	out := &testlogger.Buffer{}
	f.SetStreams(inR, out, out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		if out.WaitFor(ctx, "Welcome") {
			io.WriteString(inW, "hi\r~.")
		}
	}()

	err := f.Login(ctx, fixture.Target{Host: "127.0.0.1", Port: "22", User: "keeper", Password: "keeper"})
	require.NoError(t, err)
	assert.NoError(t, ctx.Err(), "ended by the escape, not the timeout")
}

func TestLoginNativeBadPassword(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	srv := sshtest.Start(t, sshtest.Config{Logger: logger})
	defer srv.Close()

	f := fixture.New(logger, fixture.Options{Driver: fixture.DriverNative})
	f.SetDialer(srv.Dialer)
	f.SetStreams(strings.NewReader(""), io.Discard, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := f.Login(ctx, fixture.Target{Host: "127.0.0.1", Port: "22", User: "keeper", Password: "nope"})
	require.Error(t, err)
	var exitErr *fixture.ExitError
	assert.False(t, errors.As(err, &exitErr))
	assert.Equal(t, 0, srv.Logins())
}
