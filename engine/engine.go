// Package engine looks up where the fixture container can be reached and
// manages its lifecycle, through the docker command line tools or the Docker
// Engine API.
package engine

import (
	"errors"
	"strconv"
	"strings"
)

// Resolver names.
const (
	ResolverCLI = "cli"
	ResolverAPI = "api"
)

// LocalHost is the engine host address when the daemon runs locally.
const LocalHost = "127.0.0.1"

// ErrNotRunning indicates that the container exists but is not running.
var ErrNotRunning = errors.New("container is not running")

// DefaultPortOffset is the first byte kept from a port lookup line, counting
// from 1. It skips the "0.0.0.0:" prefix of "0.0.0.0:32768".
const DefaultPortOffset = 9

// ExtractPort returns the first line of out starting at byte from, counting
// from 1, the way `cut -c <from>-` does. Lines shorter than that give an
// empty string. Unlike cut, a trailing carriage return is dropped, so CRLF
// output from a docker client on Windows gives the same port. Nothing else
// about the line is checked.
func ExtractPort(out string, from int) string {
	line := out
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")

	if from < 1 {
		from = 1
	}
	if len(line) < from {
		return ""
	}
	return line[from-1:]
}

func portSpec(port int) string {
	return strconv.Itoa(port)
}
