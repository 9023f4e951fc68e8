// Package sshtest runs an in-memory SSH server for tests.
//
// The server mimics the git-keeper test container: one user with a password,
// a shell that echoes what it is sent, and canned output for exec requests.
package sshtest

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/kballard/go-shellquote"
	gossh "golang.org/x/crypto/ssh"

	"github.com/rwool/gkfix/log"
	"github.com/rwool/gkfix/test/helpers/clientserverpair"
	"github.com/rwool/gkfix/test/helpers/recursivelistener"
)

// Output is the canned reply to an exec request.
type Output struct {
	Stdout string
	Stderr string
	Code   int
}

// Config configures a test server. Zero values are replaced with defaults
// matching the git-keeper test image.
type Config struct {
	Logger   log.Logger
	User     string
	Password string

	// KeyboardInteractive offers keyboard-interactive authentication with
	// Prompt as the only question, in place of password authentication.
	KeyboardInteractive bool
	Prompt              string

	// Commands maps shell-quoted exec requests to their replies.
	Commands map[string]Output

	// ShellExit is the exit status of the shell after it reads "exit".
	ShellExit int

	// Listener, when set, is served on in place of the in-memory pipe, for
	// clients that can only dial real addresses. Dialer is nil then.
	Listener net.Listener
}

// Server is a running test server.
type Server struct {
	Dialer  *clientserverpair.Dialer
	HostKey gossh.PublicKey

	conf     Config
	listener *recursivelistener.Listener
	doneC    chan struct{}
	once     sync.Once

	mu      sync.Mutex
	windows []ssh.Window
	logins  int
}

// Start starts a server that is stopped when the test finishes.
func Start(tb testing.TB, conf Config) *Server {
	tb.Helper()

	if conf.Logger == nil {
		conf.Logger = log.Discard()
	}
	if conf.User == "" {
		conf.User = "keeper"
	}
	if conf.Password == "" {
		conf.Password = "keeper"
	}
	if conf.Prompt == "" {
		conf.Prompt = "Password: "
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		tb.Fatalf("unable to generate host key: %+v", err)
	}
	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		tb.Fatalf("unable to create host signer: %+v", err)
	}

	s := &Server{
		HostKey: signer.PublicKey(),
		conf:    conf,
		doneC:   make(chan struct{}),
	}
	if conf.Listener != nil {
		s.listener = recursivelistener.New(conf.Listener)
	} else {
		d, l := clientserverpair.New(&clientserverpair.Config{
			Logger: conf.Logger,
		})
		s.Dialer = d
		s.listener = recursivelistener.New(l)
	}

	srv := &ssh.Server{
		Handler:     s.handle,
		HostSigners: []ssh.Signer{signer.(ssh.Signer)},
	}
	if conf.KeyboardInteractive {
		srv.KeyboardInteractiveHandler = s.keyboardInteractive
	} else {
		srv.PasswordHandler = s.password
	}

	go func() {
		defer close(s.doneC)
		err := srv.Serve(s.listener)
		conf.Logger.Debugf("test SSH server stopped: %v", err)
	}()

	tb.Cleanup(s.Close)
	return s
}

// Close stops the server and closes every connection it accepted.
func (s *Server) Close() {
	s.once.Do(func() {
		s.listener.Close()
		select {
		case <-s.doneC:
		case <-time.After(5 * time.Second):
			panic("timeout stopping test SSH server")
		}
	})
}

// Addr returns the address the server accepts connections on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Windows returns the window sizes the shell has been told about, the
// initial size first.
func (s *Server) Windows() []ssh.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ssh.Window(nil), s.windows...)
}

// Logins returns the number of successful authentications.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Server) accept(user, password string) bool {
	ok := user == s.conf.User && password == s.conf.Password
	if ok {
		s.mu.Lock()
		s.logins++
		s.mu.Unlock()
	}
	return ok
}

func (s *Server) password(ctx ssh.Context, password string) bool {
	return s.accept(ctx.User(), password)
}

func (s *Server) keyboardInteractive(ctx ssh.Context, challenge gossh.KeyboardInteractiveChallenge) bool {
	answers, err := challenge(ctx.User(), "", []string{s.conf.Prompt}, []bool{false})
	if err != nil || len(answers) != 1 {
		return false
	}
	return s.accept(ctx.User(), answers[0])
}

func (s *Server) handle(sess ssh.Session) {
	if len(sess.Command()) > 0 {
		s.exec(sess)
		return
	}
	s.shell(sess)
}

func (s *Server) exec(sess ssh.Session) {
	cmd := shellquote.Join(sess.Command()...)
	out, ok := s.conf.Commands[cmd]
	if !ok {
		out = Output{
			Stderr: fmt.Sprintf("sh: 1: %s: not found\n", sess.Command()[0]),
			Code:   127,
		}
	}
	io.WriteString(sess, out.Stdout)
	io.WriteString(sess.Stderr(), out.Stderr)
	sess.Exit(out.Code)
}

func (s *Server) shell(sess ssh.Session) {
	ptyReq, winC, isPty := sess.Pty()
	if isPty {
		s.recordWindow(ptyReq.Window)
		go func() {
			for {
				select {
				case w, ok := <-winC:
					if !ok {
						return
					}
					s.recordWindow(w)
				case <-sess.Context().Done():
					return
				}
			}
		}()
	}

	fmt.Fprintf(sess, "Welcome to the git-keeper test server, %s\r\n", sess.User())
	r := bufio.NewReader(sess)
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "exit":
			io.WriteString(sess, "logout\r\n")
			sess.Exit(s.conf.ShellExit)
			return
		case line != "":
			fmt.Fprintf(sess, "you said: %s\r\n", line)
		}
		if err != nil {
			sess.Exit(0)
			return
		}
	}
}

func (s *Server) recordWindow(w ssh.Window) {
	s.mu.Lock()
	s.windows = append(s.windows, w)
	s.mu.Unlock()
}

// WaitForWindow blocks until the shell has been told about a window of the
// given size, or ctx is done.
func (s *Server) WaitForWindow(ctx context.Context, width, height int) bool {
	for {
		for _, w := range s.Windows() {
			if w.Width == width && w.Height == height {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(5 * time.Millisecond):
		}
	}
}
