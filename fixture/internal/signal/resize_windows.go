//go:build windows

package signal

import "os"

// Resize is nil on Windows, which has no window size signal.
var Resize os.Signal
