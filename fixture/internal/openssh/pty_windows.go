//go:build windows

package openssh

import (
	"context"

	"github.com/pkg/errors"
)

func spawnPTY(context.Context, int, int, string, ...string) (Process, error) {
	return nil, errors.New("pseudo-terminals are not supported on windows, use the native driver")
}
