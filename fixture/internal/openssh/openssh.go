// Package openssh logs in by driving the system ssh client under a
// pseudo-terminal. The password prompt is answered once, after which the
// session belongs to the user.
package openssh

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/fixture/internal/expect"
	"github.com/rwool/gkfix/fixture/internal/signal"
	"github.com/rwool/gkfix/fixture/internal/termio"
	"github.com/rwool/gkfix/log"
)

// Config describes one ssh invocation.
type Config struct {
	Binary   string
	Host     string
	Port     string
	User     string
	Password string
	// Prompt is matched case-insensitively anywhere in the client output.
	Prompt string
	// StrictHostKeys rejects unknown or changed host keys. Otherwise any host
	// key is accepted and nothing is recorded.
	StrictHostKeys bool
	// KnownHosts replaces the user's known_hosts file when checking strictly.
	KnownHosts string
}

// Args returns the arguments passed to the ssh client for c.
func Args(c Config) []string {
	var args []string
	if c.StrictHostKeys {
		args = append(args, "-o", "StrictHostKeyChecking=yes")
		if c.KnownHosts != "" {
			args = append(args, "-o", "UserKnownHostsFile="+c.KnownHosts)
		}
	} else {
		args = append(args,
			"-o", "StrictHostKeyChecking=no",
			"-o", "UserKnownHostsFile=/dev/null")
	}
	return append(args, "-p", c.Port, c.User+"@"+c.Host)
}

// Process is a running program attached to a terminal.
type Process interface {
	io.ReadWriteCloser
	Resize(width, height int) error
	// Wait waits for the program to exit and returns its exit code.
	Wait() (int, error)
}

// Spawner starts programs.
type Spawner interface {
	Spawn(ctx context.Context, width, height int, name string, args ...string) (Process, error)
}

// SpawnFunc adapts a function to the Spawner interface.
type SpawnFunc func(ctx context.Context, width, height int, name string, args ...string) (Process, error)

// Spawn calls f.
func (f SpawnFunc) Spawn(ctx context.Context, width, height int, name string, args ...string) (Process, error) {
	return f(ctx, width, height, name, args...)
}

// PTY starts programs on a new pseudo-terminal.
var PTY Spawner = SpawnFunc(spawnPTY)

// Login runs the ssh client described by c with tio as the user's terminal.
//
// A non-nil error means the session never got to the point of being handed
// over, for example because the client exited before prompting. The exit
// code of the client is returned either way, or -1 if it is unknown.
//
// The goroutine copying tio.In to the client outlives Login until its pending
// Read on tio.In returns.
func Login(ctx context.Context, logger log.Logger, spawner Spawner, tio *termio.Terminal, c Config) (int, error) {
	if logger == nil {
		panic("nil logger")
	}

	args := Args(c)
	width, height := tio.Size()
	logger.Debugf("spawning %s %s", c.Binary, strings.Join(args, " "))
	proc, err := spawner.Spawn(ctx, width, height, c.Binary, args...)
	if err != nil {
		return -1, errors.Wrapf(err, "unable to start %s", c.Binary)
	}
	defer proc.Close()

	stop := context.AfterFunc(ctx, func() {
		logger.Debugf("context done, closing %s", c.Binary)
		_ = proc.Close()
	})
	defer stop()

	exp := expect.New(logger, proc, tio.Out)
	defer exp.Close()
	exp.SetFoldCase(true)

	if err := exp.Expect(ctx, c.Prompt); err != nil {
		_ = proc.Close()
		code, _ := proc.Wait()
		return code, errors.Wrap(err, "no password prompt")
	}

	if _, err := io.WriteString(proc, c.Password+"\r"); err != nil {
		_ = proc.Close()
		code, _ := proc.Wait()
		return code, errors.Wrap(err, "unable to send password")
	}
	logger.Debugf("password sent, handing over the session")

	restore, err := tio.MakeRaw()
	if err != nil {
		_ = proc.Close()
		code, _ := proc.Wait()
		return code, err
	}
	defer restore()

	resize := func(os.Signal) {
		w, h := tio.Size()
		if err := proc.Resize(w, h); err != nil {
			logger.Debugf("unable to resize terminal: %+v", err)
		}
	}
	watcher := signal.Watch(logger, signal.Pair{Signal: signal.Resize, Handler: resize})
	defer watcher.Stop()

	go func() {
		if _, err := io.Copy(proc, tio.In); err != nil {
			logger.Debugf("input copy ended: %+v", err)
		}
	}()

	if _, err := io.Copy(tio.Out, exp); err != nil {
		logger.Debugf("output copy ended: %+v", err)
	}

	code, err := proc.Wait()
	logger.Debugf("%s exited with %d", c.Binary, code)
	return code, errors.Wrapf(err, "waiting for %s", c.Binary)
}
