// Package goroutinechecker fails tests that leave goroutines behind, such as
// a session copier still blocked on a terminal or a dialer stuck in a
// handshake.
package goroutinechecker

import (
	"bytes"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Goroutines blocked in one of these functions belong to the runtime or the
// test framework rather than to the code under test.
var ignored = [][]byte{
	[]byte("testing.(*T).Parallel"),
	[]byte("testing.(*T).Run"),
	[]byte("testing.tRunner.func1"),
	[]byte("os/signal.signal_recv"),
	[]byte("os/signal.loop"),
	[]byte("runtime.ensureSigM"),
}

// Stacks returns the stack traces of all goroutines.
func Stacks() []byte {
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// Count returns the number of goroutines that are not ignored.
func Count() int {
	var n int
	for _, g := range bytes.Split(Stacks(), []byte("\n\n")) {
		if len(bytes.TrimSpace(g)) == 0 {
			continue
		}
		if !isIgnored(g) {
			n++
		}
	}
	return n
}

func isIgnored(stack []byte) bool {
	for _, fn := range ignored {
		if bytes.Contains(stack, fn) {
			return true
		}
	}
	return false
}

// Settle waits up to wait for the goroutine count to drop to limit. It
// returns the last count and whether the limit was reached.
func Settle(limit int, wait time.Duration) (int, bool) {
	deadline := time.Now().Add(wait)
	for {
		n := Count()
		if n <= limit || time.Now().After(deadline) {
			return n, n <= limit
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// New records the current goroutine count. The returned function fails tb
// if more goroutines are running when it is called.
//
// Not for use in tests that call T.Parallel.
func New(tb testing.TB) func() {
	tb.Helper()

	start := Count()
	return func() {
		tb.Helper()
		if n, ok := Settle(start, time.Second); !ok {
			assert.FailNow(tb, "goroutines left running",
				"have %d, expected at most %d:\n%s", n, start, Stacks())
		}
	}
}
