package fixture

import (
	"bufio"
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// DefaultEmailDir is where the SMTP stub of the dev image writes messages,
// relative to the login directory.
const DefaultEmailDir = "email"

// EmailCounts maps a username to the number of messages captured for it.
type EmailCounts map[string]int

// Users returns the usernames in sorted order.
func (ec EmailCounts) Users() []string {
	users := make([]string, 0, len(ec))
	for u := range ec {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// ParseEmailListing counts messages in a directory listing with one name per
// line. Captured messages are named <username>_<n>.txt with n counting from
// 1, so the count for a user is the highest n seen. Other names are ignored.
func ParseEmailListing(listing []byte) EmailCounts {
	counts := EmailCounts{}
	s := bufio.NewScanner(bytes.NewReader(listing))
	for s.Scan() {
		name := strings.TrimSpace(s.Text())
		base := strings.TrimSuffix(name, ".txt")
		if base == name {
			continue
		}
		i := strings.LastIndexByte(base, '_')
		if i <= 0 {
			continue
		}
		n, err := strconv.Atoi(base[i+1:])
		if err != nil || n < 1 {
			continue
		}
		if user := base[:i]; n > counts[user] {
			counts[user] = n
		}
	}
	return counts
}

// Emails logs into t with the native client and counts the messages the SMTP
// stub captured in dir.
func (f *Fixture) Emails(ctx context.Context, t Target, dir string) (EmailCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir == "" {
		dir = DefaultEmailDir
	}

	client, err := f.dial(ctx, t)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	out, err := client.Output(ctx, "ls "+shellquote.Join(dir))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list %s", dir)
	}
	return ParseEmailListing(out), nil
}
