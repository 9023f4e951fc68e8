// Package sshtarget provides support for managing a client SSH connection.
package sshtarget

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/rwool/gkfix/log"
)

// SSH is a wrapper around the SSH client.
type SSH struct {
	sshClient *ssh.Client
	logger    log.Logger
}

// Close closes the connection to the SSH server.
func (s *SSH) Close() error {
	return s.sshClient.Close()
}

// HostKeyCallback is a function for handling host keys.
type HostKeyCallback = ssh.HostKeyCallback

var (
	// InsecureIgnoreHostKey ignores the host key.
	InsecureIgnoreHostKey = ssh.InsecureIgnoreHostKey
	// FixedHostKey uses a single, fixed public key.
	FixedHostKey = ssh.FixedHostKey
)

// NewSSH creates a new SSH connection over conn with the given configuration.
func NewSSH(ctx context.Context, logger log.Logger, conn net.Conn, address string,
	keyCallback HostKeyCallback, username string, auths []Authorizer) (*SSH, error) {
	if logger == nil {
		panic("nil logger")
	}

	sshAuths := make([]ssh.AuthMethod, 0, len(auths))
	for i, v := range auths {
		if v == nil {
			panic(fmt.Sprintf("nil authorizer given at index %d", i))
		}
		sshAuths = append(sshAuths, v.GetAuthMethod())
	}

	sshConf := ssh.ClientConfig{
		User:            username,
		Auth:            sshAuths,
		HostKeyCallback: keyCallback,
	}

	// Set when the connection was closed because the context is done.
	var contextError error

	sshConnCreatedC := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	// The SSH handshake has no cancellation of its own, so the underlying
	// connection is closed instead.
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			logger.Debug("closing net.Conn for SSH due to context being done")
			contextError = errors.Wrap(ctx.Err(), "SSH connection cancelled")
			if err := conn.Close(); err != nil {
				logger.Warnf("error attempting to close network connection for SSH: %+v", err)
			}
		case <-sshConnCreatedC:
		}
	}()

	logger.Debugf("attempting to connect to %q (network: %s) with username %q", address, conn.RemoteAddr(), sshConf.User)
	sshConn, channels, requests, err := ssh.NewClientConn(conn, address, &sshConf)
	close(sshConnCreatedC)
	wg.Wait()
	if err != nil {
		if contextError != nil {
			return nil, contextError
		}
		return nil, errors.Wrap(err, "failed to create SSH client connection")
	}

	return &SSH{
		sshClient: ssh.NewClient(sshConn, channels, requests),
		logger:    logger,
	}, nil
}

// PTYConfig is used to configure the PTY settings when connecting via SSH.
type PTYConfig struct {
	Term   string
	Height int
	Width  int
}

// WindowDims contains the dimensions of the window.
type WindowDims struct {
	Height int
	Width  int
}

// DefaultTerminalMode is the default mode that will be set for the terminal.
var DefaultTerminalMode = ssh.TerminalModes{
	ssh.ECHO:          1,
	ssh.TTY_OP_ISPEED: 14400, // input speed = 14.4kbaud
	ssh.TTY_OP_OSPEED: 14400, // output speed = 14.4kbaud
}

// ShellConfig contains the configuration for an interactive shell.
type ShellConfig struct {
	StdIn  io.Reader
	StdOut io.Writer
	StdErr io.Writer

	// PTYConfig requests a pseudo-terminal when set.
	PTYConfig *PTYConfig

	// WinCh optionally delivers new window dimensions.
	WinCh <-chan WindowDims
}

// Shell runs an interactive shell until the remote side exits or ctx is done,
// and returns the exit status of the shell.
//
// When ctx is done the whole connection is closed, as an unresponsive server
// would otherwise never acknowledge the session closing. Copying from
// config.StdIn continues until its pending Read returns.
func (s *SSH) Shell(ctx context.Context, config ShellConfig) (int, error) {
	sess, err := s.sshClient.NewSession()
	if err != nil {
		return -1, errors.Wrap(err, "unable to create session")
	}
	defer sess.Close()

	sess.Stdout = config.StdOut
	sess.Stderr = config.StdErr

	// A pipe is used rather than setting Stdin so that waiting for the
	// session does not also wait for the input to end.
	stdIn, err := sess.StdinPipe()
	if err != nil {
		return -1, errors.Wrap(err, "unable to open session input")
	}

	if config.PTYConfig != nil {
		err = sess.RequestPty(config.PTYConfig.Term,
			config.PTYConfig.Height,
			config.PTYConfig.Width,
			DefaultTerminalMode)
		if err != nil {
			return -1, errors.Wrap(err, "unable to acquire PTY")
		}
	}

	if err := sess.Shell(); err != nil {
		return -1, errors.Wrap(err, "unable to create shell via SSH")
	}

	// Window changes are only sent once the shell is running, as servers may
	// not service them before that.
	doneC := make(chan struct{})
	defer close(doneC)
	if config.WinCh != nil {
		go func() {
			for {
				select {
				case dims := <-config.WinCh:
					if err := sess.WindowChange(dims.Height, dims.Width); err != nil {
						s.logger.Debugf("unable to update window dimensions: %+v", err)
					}
				case <-doneC:
					return
				}
			}
		}()
	}

	if config.StdIn != nil {
		go func() {
			if _, err := io.Copy(stdIn, config.StdIn); err != nil {
				s.logger.Debugf("shell input copy ended: %+v", err)
			}
			stdIn.Close()
		}()
	}

	return s.wait(ctx, sess.Wait)
}

// Output runs cmd and returns what it wrote to standard output. A non-zero
// exit status is returned as an error that includes standard error.
func (s *SSH) Output(ctx context.Context, cmd string) ([]byte, error) {
	sess, err := s.sshClient.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create session")
	}
	defer sess.Close()

	var stdOut, stdErr bytes.Buffer
	sess.Stdout = &stdOut
	sess.Stderr = &stdErr

	if err := sess.Start(cmd); err != nil {
		return nil, errors.Wrapf(err, "unable to run %q via SSH", cmd)
	}

	code, err := s.wait(ctx, sess.Wait)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return stdOut.Bytes(), errors.Errorf("%q exited with status %d: %s", cmd, code, bytes.TrimSpace(stdErr.Bytes()))
	}
	return stdOut.Bytes(), nil
}

func (s *SSH) wait(ctx context.Context, wait func() error) (int, error) {
	waitC := make(chan error, 1)
	go func() { waitC <- wait() }()

	select {
	case err := <-waitC:
		return exitCode(err)
	case <-ctx.Done():
		s.logger.Debug("closing SSH connection due to context being done")
		s.sshClient.Close()
		<-waitC
		return -1, errors.Wrap(ctx.Err(), "SSH session cancelled")
	}
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, errors.Wrap(err, "SSH session failed")
}
