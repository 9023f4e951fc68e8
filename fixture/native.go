package fixture

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/rwool/gkfix/fixture/escape"
	"github.com/rwool/gkfix/fixture/internal/signal"
	"github.com/rwool/gkfix/fixture/internal/sshtarget"
)

func (f *Fixture) loginNative(ctx context.Context, t Target) error {
	client, err := f.dial(ctx, t)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var disconnected int32
	in := escape.NewReader(f.term.In, escape.Disconnect(func() {
		f.logger.Infof("disconnecting from %s", t)
		atomic.StoreInt32(&disconnected, 1)
		cancel()
	})...)

	restore, err := f.term.MakeRaw()
	if err != nil {
		return err
	}
	defer restore()

	winC := make(chan sshtarget.WindowDims, 1)
	resize := func(os.Signal) {
		w, h := f.term.Size()
		select {
		case winC <- sshtarget.WindowDims{Height: h, Width: w}:
		default:
			f.logger.Debugf("dropping window change to %dx%d", w, h)
		}
	}
	watcher := signal.Watch(f.logger, signal.Pair{Signal: signal.Resize, Handler: resize})
	defer watcher.Stop()

	width, height := f.term.Size()
	code, err := client.Shell(ctx, sshtarget.ShellConfig{
		StdIn:  in,
		StdOut: f.term.Out,
		StdErr: f.term.Err,
		PTYConfig: &sshtarget.PTYConfig{
			Term:   f.term.Type(),
			Height: height,
			Width:  width,
		},
		WinCh: winC,
	})
	if err != nil {
		if atomic.LoadInt32(&disconnected) == 1 {
			return nil
		}
		return errors.Wrapf(err, "shell on %s failed", t)
	}
	return exitErr(code)
}
