// Package signal dispatches OS signals, and signals sent from code, to
// handlers that run on a single goroutine.
package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rwool/gkfix/log"
)

// Terminate holds the signals that should end an interactive session.
var Terminate = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Handler is called for every delivery of the signal it is registered for.
//
// Handlers should not block for too long or handling of new signals will be
// delayed.
type Handler func(os.Signal)

// Pair associates a signal with its handler. Pairs with a nil Signal are
// ignored, which lets platform specific signals be listed unconditionally.
type Pair struct {
	Signal  os.Signal
	Handler Handler
}

// Watcher delivers signals to their handlers until it is stopped.
type Watcher struct {
	logger   log.Logger
	handlers map[os.Signal]Handler

	osSigC chan os.Signal
	sendC  chan os.Signal
	stopC  chan struct{}
	doneC  chan struct{}
	once   sync.Once

	// notified is set when osSigC was passed to signal.Notify.
	notified bool
}

// Watch begins handling the signals named by pairs.
func Watch(logger log.Logger, pairs ...Pair) *Watcher {
	if logger == nil {
		panic("nil logger")
	}

	w := &Watcher{
		logger:   logger,
		handlers: make(map[os.Signal]Handler, len(pairs)),
		osSigC:   make(chan os.Signal, 10),
		sendC:    make(chan os.Signal),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
	}

	sigs := make([]os.Signal, 0, len(pairs))
	for _, p := range pairs {
		if p.Signal == nil {
			continue
		}
		if p.Handler == nil {
			panic("nil handler for " + p.Signal.String())
		}
		logger.Debugf("registering handler for %s", p.Signal)
		w.handlers[p.Signal] = p.Handler
		// Signals the OS cannot deliver are only reachable through Send.
		if _, ok := p.Signal.(syscall.Signal); ok {
			sigs = append(sigs, p.Signal)
		}
	}

	if len(sigs) > 0 {
		signal.Notify(w.osSigC, sigs...)
		w.notified = true
	}
	go w.loop()

	return w
}

func (w *Watcher) loop() {
	defer close(w.doneC)
	if w.notified {
		defer signal.Stop(w.osSigC)
	}

	for {
		select {
		case sig := <-w.osSigC:
			w.dispatch(sig, "OS")
		case sig := <-w.sendC:
			w.dispatch(sig, "non-OS")
		case <-w.stopC:
			w.logger.Debugf("stopping signal handling loop")
			return
		}
	}
}

func (w *Watcher) dispatch(sig os.Signal, kind string) {
	h, ok := w.handlers[sig]
	if !ok {
		w.logger.Debugf("no handler for %s signal %s", kind, sig)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("panic from calling handler for %s signal %s: %+v", kind, sig, r)
		}
	}()
	h(sig)
}

// Send delivers sig to its handler without going through the OS. It does
// nothing once the Watcher is stopped.
func (w *Watcher) Send(sig os.Signal) {
	select {
	case w.sendC <- sig:
	case <-w.doneC:
	}
}

// Stop stops signal handling and waits for the handling goroutine to exit.
// It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stopC) })
	<-w.doneC
}
