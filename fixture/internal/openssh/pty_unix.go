//go:build !windows

package openssh

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

func spawnPTY(ctx context.Context, width, height int, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	f, err := pty.StartWithSize(cmd, winsize(width, height))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to start %s on a pty", name)
	}
	return &ptyProcess{cmd: cmd, f: f}, nil
}

func winsize(width, height int) *pty.Winsize {
	return &pty.Winsize{Cols: uint16(width), Rows: uint16(height)}
}

type ptyProcess struct {
	cmd  *exec.Cmd
	f    *os.File
	once sync.Once
}

// Read reads the program's output. The pty reports EIO once the program has
// exited, which is turned into io.EOF.
func (p *ptyProcess) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if err != nil && errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// Close closes the pty, which hangs up on the program.
func (p *ptyProcess) Close() error {
	var err error
	p.once.Do(func() { err = p.f.Close() })
	return err
}

func (p *ptyProcess) Resize(width, height int) error {
	return errors.Wrap(pty.Setsize(p.f, winsize(width, height)), "unable to set pty size")
}

func (p *ptyProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, errors.Wrap(err, "unable to wait for program")
	}
}
