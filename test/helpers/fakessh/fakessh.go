// Package fakessh stands in for the system ssh client in tests of the
// openssh login driver.
package fakessh

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/rwool/gkfix/fixture"
)

// Process prompts, waits for the first line of input and exits with a fixed
// status after greeting.
type Process struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu    sync.Mutex
	input bytes.Buffer
	lineC chan struct{}

	code  int
	doneC chan struct{}
	once  sync.Once
}

// New starts a process that writes prompt and exits with code once a line
// ending in "\r" has been written to it. Closing it early gives exit status
// -1.
func New(prompt string, code int) *Process {
	r, w := io.Pipe()
	p := &Process{outR: r, outW: w, lineC: make(chan struct{}), doneC: make(chan struct{}), code: code}
	go func() {
		io.WriteString(w, prompt)
		select {
		case <-p.lineC:
			io.WriteString(w, "\r\nWelcome\r\n")
		case <-p.doneC:
		}
		p.once.Do(func() { close(p.doneC) })
		w.Close()
	}()
	return p
}

func (p *Process) Read(b []byte) (int, error) { return p.outR.Read(b) }

func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before := bytes.Contains(p.input.Bytes(), []byte("\r"))
	p.input.Write(b)
	if !before && bytes.Contains(p.input.Bytes(), []byte("\r")) {
		close(p.lineC)
	}
	return len(b), nil
}

// Close ends the process.
func (p *Process) Close() error {
	p.outR.Close()
	p.once.Do(func() {
		p.code = -1
		close(p.doneC)
	})
	return nil
}

// Resize is accepted and ignored.
func (p *Process) Resize(int, int) error { return nil }

// Wait returns the exit status once the process has ended.
func (p *Process) Wait() (int, error) {
	<-p.doneC
	return p.code, nil
}

// Input returns everything written to the process.
func (p *Process) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.String()
}

// Spawner starts a new Process for every spawn and records the command lines.
type Spawner struct {
	Prompt string
	Code   int

	mu     sync.Mutex
	spawns [][]string
	procs  []*Process
}

var _ fixture.Spawner = (*Spawner)(nil)

// Spawn implements fixture.Spawner.
func (s *Spawner) Spawn(_ context.Context, _, _ int, name string, args ...string) (fixture.Process, error) {
	p := New(s.Prompt, s.Code)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawns = append(s.spawns, append([]string{name}, args...))
	s.procs = append(s.procs, p)
	return p, nil
}

// Spawns returns the command line of every spawn.
func (s *Spawner) Spawns() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.spawns...)
}

// Processes returns every spawned process.
func (s *Spawner) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.procs...)
}
