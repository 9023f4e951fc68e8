package sshtarget

import (
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const globalKnownHosts = "/etc/ssh/ssh_known_hosts"

// statFunc reports whether a file can be used. It is os.Stat outside of tests.
type statFunc func(string) error

// knownHostPaths returns the known_hosts files that ssh(1) would consult by
// default, global file first. Missing files are skipped, but at least one has
// to exist.
func knownHostPaths(home string, stat statFunc) ([]string, error) {
	candidates := []string{globalKnownHosts, filepath.Join(home, ".ssh", "known_hosts")}

	var (
		paths   []string
		lastErr error
	)
	for _, p := range candidates {
		if err := stat(p); err != nil {
			lastErr = err
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, errors.Wrap(lastErr, "no known_hosts file found")
	}
	return paths, nil
}

// DefaultKnownHosts returns the known_hosts files of the current user that
// exist.
func DefaultKnownHosts() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "unable to get home directory for known_hosts file")
	}
	return knownHostPaths(home, func(p string) error {
		_, err := os.Stat(p)
		return err
	})
}

// WriteKnownHost appends an unhashed known_hosts line pinning key for hosts.
// Hosts may carry a port, in which case the [host]:port form is written.
func WriteKnownHost(w io.Writer, hosts []string, key ssh.PublicKey) error {
	if len(hosts) == 0 {
		return errors.New("no hosts for known_hosts line")
	}
	addrs := make([]string, len(hosts))
	for i, h := range hosts {
		addrs[i] = knownhosts.Normalize(h)
	}
	_, err := io.WriteString(w, knownhosts.Line(addrs, key)+"\n")
	return errors.Wrap(err, "unable to write known_hosts line")
}

// KnownHostsCallback checks host keys against the given known_hosts files.
// Rejections are wrapped with a description of what went wrong. The
// knownhosts error stays available as the cause.
func KnownHostsCallback(paths ...string) (HostKeyCallback, error) {
	check, err := knownhosts.New(paths...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read known_hosts")
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		switch {
		case err == nil:
			return nil
		case IsRevoked(err):
			return errors.Wrapf(err, "host key for %s is revoked", hostname)
		case IsKeyChange(err):
			return errors.Wrapf(err, "host key for %s does not match known_hosts", hostname)
		case IsUnknownHost(err):
			return errors.Wrapf(err, "%s is not in known_hosts", hostname)
		default:
			return err
		}
	}, nil
}

// PublicKeyFile reads a single public key in authorized_keys format, such as
// a host's ssh_host_ed25519_key.pub.
func PublicKeyFile(path string) (ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read host public key")
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey(data)
	return key, errors.Wrapf(err, "unable to parse host public key %s", path)
}

// IsUnknownHost reports whether err came from a host missing in known_hosts.
func IsUnknownHost(err error) bool {
	var ke *knownhosts.KeyError
	return errors.As(err, &ke) && len(ke.Want) == 0
}

// IsKeyChange reports whether err came from a known host presenting a
// different key.
func IsKeyChange(err error) bool {
	var ke *knownhosts.KeyError
	return errors.As(err, &ke) && len(ke.Want) > 0
}

// IsRevoked reports whether err came from a @revoked key.
func IsRevoked(err error) bool {
	var re *knownhosts.RevokedError
	return errors.As(err, &re)
}
