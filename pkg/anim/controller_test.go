package anim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-grace/pkg/voice"
)

func newTestController(initial voice.State) (*Controller, *ManualClock) {
	clock := NewManualClock(time.Unix(1700000000, 0))
	return NewController(initial, WithClock(clock)), clock
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNewControllerInitialOpacity(t *testing.T) {
	tests := []struct {
		state voice.State
		want  float64
	}{
		{voice.Inactive, OpacityInactive},
		{voice.Connecting, OpacityActive},
		{voice.Listening, OpacityActive},
		{voice.Speaking, OpacityActive},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			ctrl, _ := newTestController(tt.state)
			if got := ctrl.Frame().Opacity; !approx(got, tt.want) {
				t.Errorf("opacity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRapidTransitionsBounded(t *testing.T) {
	ctrl, clock := newTestController(voice.Inactive)

	seq := []voice.State{voice.Listening, voice.Speaking, voice.Inactive, voice.Connecting, voice.Speaking, voice.Listening, voice.Inactive}
	for i := 0; i < 50; i++ {
		for _, s := range seq {
			ctrl.OnStateChange(s)
			if n := ctrl.ActiveSchedules(); n > 4 {
				t.Fatalf("active schedules = %d after %s, want <= 4", n, s)
			}
			if i%7 == 0 {
				clock.Advance(time.Millisecond)
				ctrl.Tick()
			}
		}
	}
}

func TestInactiveTransition(t *testing.T) {
	ctrl, clock := newTestController(voice.Listening)
	clock.Advance(time.Second)
	ctrl.Tick()

	ctrl.OnStateChange(voice.Inactive)

	if n := ctrl.LoopingSchedules(); n != 0 {
		t.Fatalf("looping schedules = %d, want 0", n)
	}
	d, ok := ctrl.Schedule(SignalOpacity)
	if !ok {
		t.Fatal("expected opacity schedule")
	}
	if d.Duration != OpacityDuration || !approx(d.To, OpacityInactive) || d.Looping {
		t.Errorf("opacity schedule = %+v", d)
	}

	f := ctrl.Frame()
	if f.Pulse != 0 || f.Rotation != 0 || f.WavePhase != 0 {
		t.Errorf("signals not reset: %+v", f)
	}

	clock.Advance(150 * time.Millisecond)
	mid := ctrl.Tick().Opacity
	if mid <= OpacityInactive || mid >= OpacityActive {
		t.Errorf("mid-fade opacity = %v, want strictly between", mid)
	}

	clock.Advance(150 * time.Millisecond)
	f = ctrl.Tick()
	if !approx(f.Opacity, OpacityInactive) {
		t.Errorf("opacity after fade = %v, want %v", f.Opacity, OpacityInactive)
	}
	if n := ctrl.ActiveSchedules(); n != 0 {
		t.Errorf("active schedules after fade = %d, want 0", n)
	}
}

func TestWavePeriodByState(t *testing.T) {
	tests := []struct {
		state voice.State
		want  time.Duration
	}{
		{voice.Speaking, 3000 * time.Millisecond},
		{voice.Connecting, 5000 * time.Millisecond},
		{voice.Listening, 5000 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			ctrl, _ := newTestController(voice.Inactive)
			ctrl.OnStateChange(tt.state)
			d, ok := ctrl.Schedule(SignalWavePhase)
			if !ok {
				t.Fatal("expected wave schedule")
			}
			if d.Duration != tt.want || !d.Looping {
				t.Errorf("wave schedule = %+v, want looping %v", d, tt.want)
			}
		})
	}
}

func TestPulseLegByState(t *testing.T) {
	tests := []struct {
		state voice.State
		leg   time.Duration
	}{
		{voice.Listening, 1500 * time.Millisecond},
		{voice.Speaking, 2000 * time.Millisecond},
		{voice.Connecting, 2000 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			ctrl, _ := newTestController(tt.state)
			d, ok := ctrl.Schedule(SignalPulse)
			if !ok {
				t.Fatal("expected pulse schedule")
			}
			if len(d.Legs) != 2 {
				t.Fatalf("legs = %d, want 2", len(d.Legs))
			}
			for _, leg := range d.Legs {
				if leg.Duration != tt.leg {
					t.Errorf("leg duration = %v, want %v", leg.Duration, tt.leg)
				}
			}
			if d.Legs[0].From != 0 || d.Legs[0].To != 1 || d.Legs[1].From != 1 || d.Legs[1].To != 0 {
				t.Errorf("pulse legs not a triangle: %+v", d.Legs)
			}
		})
	}
}

func TestPulseTriangle(t *testing.T) {
	ctrl, clock := newTestController(voice.Listening)

	clock.Advance(PulseLegListening)
	if p := ctrl.Tick().Pulse; !approx(p, 1) {
		t.Errorf("pulse at peak = %v, want 1", p)
	}
	clock.Advance(PulseLegListening)
	if p := ctrl.Tick().Pulse; !approx(p, 0) {
		t.Errorf("pulse after cycle = %v, want 0", p)
	}
	clock.Advance(PulseLegListening / 2)
	if p := ctrl.Tick().Pulse; !approx(p, 0.5) {
		t.Errorf("pulse at quarter cycle = %v, want 0.5", p)
	}
}

func TestRotationWraps(t *testing.T) {
	ctrl, clock := newTestController(voice.Speaking)

	clock.Advance(RotationPeriod / 4)
	if r := ctrl.Tick().Rotation; !approx(r, 0.25) {
		t.Errorf("rotation = %v, want 0.25", r)
	}
	clock.Advance(RotationPeriod)
	if r := ctrl.Tick().Rotation; !approx(r, 0.25) {
		t.Errorf("rotation after wrap = %v, want 0.25", r)
	}
}

func TestSignalsStayInRange(t *testing.T) {
	ctrl, clock := newTestController(voice.Listening)
	for i := 0; i < 500; i++ {
		clock.Advance(37 * time.Millisecond)
		if i%50 == 0 {
			ctrl.OnStateChange(voice.States[i/50%len(voice.States)])
		}
		f := ctrl.Tick()
		for _, name := range SignalNames {
			v := f.Value(name)
			if v < 0 || v > 1 {
				t.Fatalf("%s = %v out of [0,1]", name, v)
			}
		}
	}
}

func TestUnknownStateFallsBackToInactive(t *testing.T) {
	ctrl, _ := newTestController(voice.Speaking)
	ctrl.OnStateChange(voice.State(42))

	if got := ctrl.State(); got != voice.Inactive {
		t.Errorf("state = %v, want inactive", got)
	}
	if n := ctrl.LoopingSchedules(); n != 0 {
		t.Errorf("looping schedules = %d, want 0", n)
	}
}

func TestTransitionHook(t *testing.T) {
	var got [][2]voice.State
	clock := NewManualClock(time.Unix(0, 0))
	ctrl := NewController(voice.Inactive, WithClock(clock), WithTransitionHook(func(from, to voice.State) {
		got = append(got, [2]voice.State{from, to})
	}))

	ctrl.OnStateChange(voice.Connecting)
	ctrl.OnStateChange(voice.Connecting)
	ctrl.OnStateChange(voice.Speaking)

	if len(got) != 2 {
		t.Fatalf("hook calls = %d, want 2", len(got))
	}
	if got[1] != [2]voice.State{voice.Connecting, voice.Speaking} {
		t.Errorf("second transition = %v", got[1])
	}
}

func TestSignalsInfo(t *testing.T) {
	ctrl, _ := newTestController(voice.Speaking)
	infos := ctrl.Signals()
	if len(infos) != len(SignalNames) {
		t.Fatalf("signals = %d, want %d", len(infos), len(SignalNames))
	}
	for i, info := range infos {
		if info.Name != SignalNames[i] {
			t.Errorf("signal %d = %s, want %s", i, info.Name, SignalNames[i])
		}
		if !info.Active || info.Schedule == nil {
			t.Errorf("signal %s inactive while speaking", info.Name)
		}
	}
}

func TestSchedulerStep(t *testing.T) {
	ctrl, clock := newTestController(voice.Listening)
	sched := NewScheduler(ctrl, 0)
	if sched.FPS() != DefaultFPS {
		t.Errorf("fps = %v, want %v", sched.FPS(), DefaultFPS)
	}

	var frames []Frame
	unsubscribe := sched.Subscribe(func(f Frame) { frames = append(frames, f) })

	clock.Advance(100 * time.Millisecond)
	sched.Step()
	clock.Advance(100 * time.Millisecond)
	sched.Step()
	unsubscribe()
	sched.Step()

	if len(frames) != 2 {
		t.Fatalf("frames delivered = %d, want 2", len(frames))
	}
	if !frames[1].At.After(frames[0].At) {
		t.Error("frame timestamps not increasing")
	}
	if sched.Frames() != 3 {
		t.Errorf("frame count = %d, want 3", sched.Frames())
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	ctrl := NewController(voice.Listening)
	sched := NewScheduler(ctrl, 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
