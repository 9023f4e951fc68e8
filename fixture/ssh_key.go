package fixture

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/fixture/internal/openssh"
	"github.com/rwool/gkfix/fixture/internal/sshtarget"
)

// Host key policy names.
const (
	PolicyInsecure   = "insecure"
	PolicyKnownHosts = "known_hosts"
	PolicyFixed      = "fixed"
)

// HostKeyPolicy decides which server host keys are accepted.
type HostKeyPolicy struct {
	kind string
	// path of the public key for PolicyFixed.
	path string
}

// InsecureHostKeys accepts any host key and records nothing. The test
// containers get new host keys every time they are built.
var InsecureHostKeys = HostKeyPolicy{kind: PolicyInsecure}

// ParseHostKeyPolicy parses "insecure", "known_hosts" or "fixed:<path>", where
// path names a public key in authorized_keys format.
func ParseHostKeyPolicy(s string) (HostKeyPolicy, error) {
	switch {
	case s == PolicyInsecure:
		return InsecureHostKeys, nil
	case s == PolicyKnownHosts:
		return HostKeyPolicy{kind: PolicyKnownHosts}, nil
	case strings.HasPrefix(s, PolicyFixed+":"):
		path := strings.TrimPrefix(s, PolicyFixed+":")
		if path == "" {
			return HostKeyPolicy{}, errors.Errorf("host key policy %q has no key path", s)
		}
		return HostKeyPolicy{kind: PolicyFixed, path: path}, nil
	default:
		return HostKeyPolicy{}, errors.Errorf("unknown host key policy %q", s)
	}
}

func (p HostKeyPolicy) String() string {
	if p.kind == PolicyFixed {
		return PolicyFixed + ":" + p.path
	}
	if p.kind == "" {
		return PolicyInsecure
	}
	return p.kind
}

// callback returns the host key check for the native client.
func (p HostKeyPolicy) callback() (sshtarget.HostKeyCallback, error) {
	switch p.kind {
	case PolicyKnownHosts:
		paths, err := sshtarget.DefaultKnownHosts()
		if err != nil {
			return nil, err
		}
		return sshtarget.KnownHostsCallback(paths...)
	case PolicyFixed:
		key, err := sshtarget.PublicKeyFile(p.path)
		if err != nil {
			return nil, err
		}
		return sshtarget.FixedHostKey(key), nil
	default:
		return sshtarget.InsecureIgnoreHostKey(), nil
	}
}

// applyOpenSSH sets up host key checking for the ssh client. The returned
// function removes any temporary file that was needed.
func (p HostKeyPolicy) applyOpenSSH(t Target, c *openssh.Config) (cleanup func(), err error) {
	cleanup = func() {}
	switch p.kind {
	case PolicyKnownHosts:
		c.StrictHostKeys = true
	case PolicyFixed:
		key, err := sshtarget.PublicKeyFile(p.path)
		if err != nil {
			return cleanup, err
		}
		f, err := os.CreateTemp("", "gkfix-known-hosts-")
		if err != nil {
			return cleanup, errors.Wrap(err, "unable to create known_hosts file")
		}
		cleanup = func() { os.Remove(f.Name()) }
		err = sshtarget.WriteKnownHost(f, []string{t.Address()}, key)
		if closeErr := f.Close(); err == nil {
			err = errors.Wrap(closeErr, "unable to close known_hosts file")
		}
		if err != nil {
			cleanup()
			return func() {}, err
		}
		c.StrictHostKeys = true
		c.KnownHosts = f.Name()
	}
	return cleanup, nil
}
