package sshtarget_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/rwool/gkfix/fixture/internal/sshtarget"
	"github.com/rwool/gkfix/test/helpers/comperr"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestKnownHostPaths(t *testing.T) {
	t.Parallel()

	home := "/home/keeper"
	userKH := filepath.Join(home, ".ssh", "known_hosts")
	missing := errors.New("file does not exist")

	tests := []struct {
		Name     string
		Present  []string
		Expected []string
		Err      bool
	}{
		{
			Name:     "Both",
			Present:  []string{sshtarget.GlobalKnownHosts, userKH},
			Expected: []string{sshtarget.GlobalKnownHosts, userKH},
		},
		{
			Name:     "User Only",
			Present:  []string{userKH},
			Expected: []string{userKH},
		},
		{
			Name:     "Global Only",
			Present:  []string{sshtarget.GlobalKnownHosts},
			Expected: []string{sshtarget.GlobalKnownHosts},
		},
		{
			Name: "Neither",
			Err:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			var checked []string
			paths, err := sshtarget.KnownHostPaths(home, func(p string) error {
				checked = append(checked, p)
				for _, present := range test.Present {
					if p == present {
						return nil
					}
				}
				return missing
			})
			assert.Len(t, checked, 2)
			if test.Err {
				require.Error(t, err)
				comperr.AssertCause(t, missing, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.Expected, paths)
		})
	}
}

func TestWriteKnownHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Name  string
		Hosts []string
		Want  []string
	}{
		{Name: "Default Port", Hosts: []string{"127.0.0.1:22"}, Want: []string{"127.0.0.1"}},
		{Name: "Mapped Port", Hosts: []string{"192.168.99.100:32768"}, Want: []string{"[192.168.99.100]:32768"}},
		{Name: "IPv6", Hosts: []string{"[::1]:2222"}, Want: []string{"[::1]:2222"}},
		{Name: "Two Hosts", Hosts: []string{"localhost", "127.0.0.1:2222"}, Want: []string{"localhost", "[127.0.0.1]:2222"}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			key := newHostKey(t)
			var buf bytes.Buffer
			require.NoError(t, sshtarget.WriteKnownHost(&buf, test.Hosts, key))
			assert.True(t, strings.HasSuffix(buf.String(), "\n"))
			assert.NotContains(t, buf.String(), "|1|")

			marker, hosts, got, _, _, err := ssh.ParseKnownHosts(buf.Bytes())
			require.NoError(t, err)
			assert.Empty(t, marker)
			assert.Equal(t, test.Want, hosts)
			assert.Equal(t, key.Marshal(), got.Marshal())
		})
	}

	assert.Error(t, sshtarget.WriteKnownHost(&bytes.Buffer{}, nil, newHostKey(t)))
}

func TestKnownHostsCallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	key := newHostKey(t)
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 32768}
	hostname := addr.String()

	write := func(t *testing.T, name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	var pinned bytes.Buffer
	require.NoError(t, sshtarget.WriteKnownHost(&pinned, []string{hostname}, key))

	t.Run("Known", func(t *testing.T) {
		cb, err := sshtarget.KnownHostsCallback(write(t, "known", pinned.String()))
		require.NoError(t, err)
		assert.NoError(t, cb(hostname, addr, key))
	})

	t.Run("Unknown", func(t *testing.T) {
		cb, err := sshtarget.KnownHostsCallback(write(t, "empty", ""))
		require.NoError(t, err)
		err = cb(hostname, addr, key)
		require.Error(t, err)
		assert.True(t, sshtarget.IsUnknownHost(err))
		assert.Contains(t, err.Error(), "not in known_hosts")
	})

	t.Run("Changed", func(t *testing.T) {
		cb, err := sshtarget.KnownHostsCallback(write(t, "changed", pinned.String()))
		require.NoError(t, err)
		err = cb(hostname, addr, newHostKey(t))
		require.Error(t, err)
		assert.True(t, sshtarget.IsKeyChange(err))
		assert.False(t, sshtarget.IsUnknownHost(err))
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("Revoked", func(t *testing.T) {
		cb, err := sshtarget.KnownHostsCallback(write(t, "revoked", "@revoked "+pinned.String()))
		require.NoError(t, err)
		err = cb(hostname, addr, key)
		require.Error(t, err)
		assert.True(t, sshtarget.IsRevoked(err))
		assert.Contains(t, err.Error(), "revoked")
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := sshtarget.KnownHostsCallback(filepath.Join(dir, "nope"))
		assert.Error(t, err)
	})
}

func TestPublicKeyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pub := newHostKey(t)

	path := filepath.Join(dir, "ssh_host_ed25519_key.pub")
	require.NoError(t, os.WriteFile(path, ssh.MarshalAuthorizedKey(pub), 0o600))

	got, err := sshtarget.PublicKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, pub.Marshal(), got.Marshal())

	bad := filepath.Join(dir, "bad.pub")
	require.NoError(t, os.WriteFile(bad, []byte("not a key\n"), 0o600))
	_, err = sshtarget.PublicKeyFile(bad)
	assert.Error(t, err)

	_, err = sshtarget.PublicKeyFile(filepath.Join(dir, "missing.pub"))
	assert.Error(t, err)
}
