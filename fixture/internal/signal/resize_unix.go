//go:build !windows

package signal

import "syscall"

// Resize is delivered when the controlling terminal changes size.
var Resize = syscall.SIGWINCH
