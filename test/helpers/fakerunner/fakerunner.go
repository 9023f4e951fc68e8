// Package fakerunner provides a scripted engine.Runner.
package fakerunner

import (
	"context"
	"io"
	"sync"

	"github.com/rwool/gkfix/engine"
)

// Runner answers commands from canned outputs keyed by the shell-quoted
// command line. Commands without an entry succeed with no output.
type Runner struct {
	// Outputs is written to the command's Stdout.
	Outputs map[string]string
	// Errors is returned from Run after any output is written.
	Errors map[string]error
	// OnRun, when set, is called before anything else and may fail the run.
	OnRun func(engine.Command) error

	mu   sync.Mutex
	cmds []engine.Command
}

// Run implements engine.Runner.
func (r *Runner) Run(ctx context.Context, c engine.Command) error {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.OnRun != nil {
		if err := r.OnRun(c); err != nil {
			return err
		}
	}

	key := c.String()
	if out, ok := r.Outputs[key]; ok && c.Stdout != nil {
		if _, err := io.WriteString(c.Stdout, out); err != nil {
			return err
		}
	}
	return r.Errors[key]
}

// Commands returns the command lines run so far, in order.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, 0, len(r.cmds))
	for _, c := range r.cmds {
		lines = append(lines, c.String())
	}
	return lines
}

// Last returns the most recent command, or the zero Command.
func (r *Runner) Last() engine.Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.cmds) == 0 {
		return engine.Command{}
	}
	return r.cmds[len(r.cmds)-1]
}
