package signal_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rwool/gkfix/fixture/internal/signal"
	"github.com/rwool/gkfix/log"
	"github.com/rwool/gkfix/test/helpers/goroutinechecker"
	"github.com/rwool/gkfix/test/helpers/testlogger"
)

// testSignal is never delivered by the OS.
type testSignal string

func (s testSignal) Signal()        {}
func (s testSignal) String() string { return string(s) }

const (
	usr1 testSignal = "usr1"
	usr2 testSignal = "usr2"
)

func TestSendSignal(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, logBuf := testlogger.NewTestLogger(t, log.Warn)

	sigC := make(chan os.Signal, 1)
	w := signal.Watch(logger, signal.Pair{
		Signal:  usr1,
		Handler: func(s os.Signal) { sigC <- s },
	})
	defer w.Stop()

	w.Send(usr1)

	select {
	case s := <-sigC:
		assert.Equal(t, os.Signal(usr1), s, "unexpected signal")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for signal handler to be called")
	}

	assert.Empty(t, string(logBuf.Bytes()), "unexpected log output")
}

func TestStopWithOnlySentSignals(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	w := signal.Watch(logger,
		signal.Pair{Signal: usr1, Handler: func(os.Signal) {}},
		signal.Pair{Signal: usr2, Handler: func(os.Signal) {}},
	)

	stoppedC := make(chan struct{})
	go func() {
		w.Stop()
		close(stoppedC)
	}()

	select {
	case <-stoppedC:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Stop to return")
	}
}

func TestUnhandledSignalIgnored(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, logBuf := testlogger.NewTestLogger(t, log.Warn)

	w := signal.Watch(logger)
	w.Send(usr2)
	w.Stop()

	assert.Empty(t, string(logBuf.Bytes()), "unexpected log output")
}

func TestSignalPanic(t *testing.T) {
	defer goroutinechecker.New(t)()

	// Logging expected, so don't use testlogger here.
	logBuf := &testlogger.Buffer{}
	logger := log.NewLogger(logBuf, log.Error)

	w := signal.Watch(logger, signal.Pair{
		Signal:  usr1,
		Handler: func(os.Signal) { panic("test panic") },
	})

	w.Send(usr1)
	// Stop waits for the loop, which finishes the dispatch first.
	w.Stop()

	assert.Contains(t, logBuf.String(), "panic from calling handler for non-OS signal")
}

func TestStopTwice(t *testing.T) {
	defer goroutinechecker.New(t)()

	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	w := signal.Watch(logger)

	assert.NotPanics(t, func() {
		w.Stop()
		w.Stop()
		w.Send(usr1)
	})
}

func TestBadWatchArguments(t *testing.T) {
	defer goroutinechecker.New(t)()

	assert.Panics(t, func() {
		signal.Watch(nil)
	})

	logger, _ := testlogger.NewTestLogger(t, log.Warn)
	assert.Panics(t, func() {
		signal.Watch(logger, signal.Pair{Signal: usr1})
	})

	// A nil signal is skipped, handler or not.
	assert.NotPanics(t, func() {
		signal.Watch(logger, signal.Pair{}).Stop()
	})
}
