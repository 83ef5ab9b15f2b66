// Grace-term plays the orb animation in a terminal. Keys switch the voice
// state: i inactive, c connecting, l listening, s speaking, q quits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-grace/internal/log"
	"github.com/teslashibe/go-grace/pkg/anim"
	"github.com/teslashibe/go-grace/pkg/orb"
	"github.com/teslashibe/go-grace/pkg/store"
	"github.com/teslashibe/go-grace/pkg/termview"
	"github.com/teslashibe/go-grace/pkg/voice"
)

var errQuit = errors.New("quit")

func main() {
	fps := flag.Float64("fps", 30, "Animation frame rate")
	fullSweep := flag.Bool("full-sweep", false, "Step waves through every cached phase")
	cycle := flag.Duration("cycle", 0, "Advance to the next state on this interval (0 disables)")
	start := flag.String("state", "inactive", "Initial state: inactive, connecting, listening, speaking")
	logPath := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	initial, err := voice.ParseStrict(*start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "grace-term: %v\n", err)
		os.Exit(2)
	}

	// The screen owns stdout.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "grace-term: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log.InitTo(logOut, "debug")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, initial, *fps, *fullSweep, *cycle); err != nil {
		fmt.Fprintf(os.Stderr, "grace-term: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, initial voice.State, fps float64, fullSweep bool, cycle time.Duration) error {
	logger := log.L()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	screen.HideCursor()

	st := store.New(store.WithLogger(logger))
	ctrl := anim.NewController(initial, anim.WithLogger(logger))
	st.SetState(initial)
	unsubState := st.Subscribe(ctrl.OnStateChange)
	defer unsubState()

	var opts []orb.RendererOption
	if fullSweep {
		opts = append(opts, orb.WithFullSweep())
	}
	view := termview.NewView(screen, orb.NewRenderer(orb.DefaultSize, append(opts, orb.WithLogger(logger))...))

	sched := anim.NewScheduler(ctrl, fps)
	frames := make(chan anim.Frame, 1)
	unsubFrames := sched.Subscribe(func(f anim.Frame) {
		select {
		case frames <- f:
		default:
		}
	})
	defer unsubFrames()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error {
		var tick <-chan time.Time
		if cycle > 0 {
			ticker := time.NewTicker(cycle)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case f := <-frames:
				view.Draw(f)

			case <-tick:
				st.SetState(next(st.State()))

			case ev := <-events:
				switch ev := ev.(type) {
				case *tcell.EventKey:
					if termview.IsQuit(ev) {
						return errQuit
					}
					if s, ok := termview.StateForKey(ev); ok {
						logger.Debug("state selected", "state", s)
						st.SetState(s)
					}
				case *tcell.EventResize:
					screen.Sync()
				}
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// next returns the state after s in display order, wrapping around.
func next(s voice.State) voice.State {
	for i, v := range voice.States {
		if v == s {
			return voice.States[(i+1)%len(voice.States)]
		}
	}
	return voice.Inactive
}
