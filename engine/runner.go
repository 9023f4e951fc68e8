package engine

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"

	"github.com/rwool/gkfix/log"
)

// Command is one run of an external program.
type Command struct {
	// Argv holds the program followed by its arguments.
	Argv []string
	// Dir is the working directory, or the current one when empty.
	Dir string
	// Stdout and Stderr receive the program's output. Either may be nil.
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return shellquote.Join(c.Argv...)
}

// Runner runs external programs.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	Logger log.Logger
}

// Run runs cmd to completion. A failed run's error includes what the program
// wrote to standard error.
func (r ExecRunner) Run(ctx context.Context, c Command) error {
	if len(c.Argv) == 0 {
		return errors.New("empty command")
	}
	if r.Logger != nil {
		r.Logger.Debugf("running %s", c)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = &stderr
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, c.Stderr)
	}

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed (output: %s)", c, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// Output runs argv and returns its standard output.
func Output(ctx context.Context, r Runner, argv ...string) ([]byte, error) {
	var out bytes.Buffer
	err := r.Run(ctx, Command{Argv: argv, Stdout: &out})
	return out.Bytes(), err
}

// ParseCommand splits a configured command such as "sudo docker" into words.
func ParseCommand(s string) ([]string, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse command %q", s)
	}
	if len(words) == 0 {
		return nil, errors.Errorf("invalid command given: empty")
	}
	return words, nil
}
