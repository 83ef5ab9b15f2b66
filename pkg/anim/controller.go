package anim

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-grace/pkg/voice"
)

// TransitionHook is called after the controller switches states.
type TransitionHook func(from, to voice.State)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) {
		if c != nil {
			ctrl.clock = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ctrl *Controller) {
		if logger != nil {
			ctrl.logger = logger
		}
	}
}

// WithTransitionHook registers a callback fired after each state change.
func WithTransitionHook(fn TransitionHook) Option {
	return func(ctrl *Controller) {
		ctrl.hooks = append(ctrl.hooks, fn)
	}
}

// Controller maps the voice state to the schedules driving the orb signals.
type Controller struct {
	mu     sync.RWMutex
	clock  Clock
	logger *slog.Logger
	hooks  []TransitionHook

	state     voice.State
	pulse     signal
	rotation  signal
	wavePhase signal
	opacity   signal
	at        time.Time
}

// NewController creates a controller already configured for initial.
func NewController(initial voice.State, opts ...Option) *Controller {
	c := &Controller{
		clock:     SystemClock{},
		logger:    slog.Default(),
		pulse:     signal{name: SignalPulse},
		rotation:  signal{name: SignalRotation},
		wavePhase: signal{name: SignalWavePhase},
		opacity:   signal{name: SignalOpacity},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "anim.controller")

	initial = initial.Normalize()
	c.state = initial
	c.opacity.value = opacityTarget(initial)
	c.configure(initial, c.clock.Now())
	return c
}

// OnStateChange reconfigures every signal for s. Unknown states are
// treated as Inactive. Calling it with the current state is a no-op.
func (c *Controller) OnStateChange(s voice.State) {
	s = s.Normalize()

	c.mu.Lock()
	from := c.state
	if from == s {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	c.opacity.advance(now)
	c.state = s
	c.configure(s, now)
	hooks := c.hooks
	c.mu.Unlock()

	c.logger.Debug("state changed", "from", from, "to", s)
	for _, fn := range hooks {
		fn(from, s)
	}
}

// configure installs the schedule set for s. Caller holds the lock.
func (c *Controller) configure(s voice.State, now time.Time) {
	for _, sig := range c.signals() {
		sig.cancel()
	}
	c.pulse.reset()
	c.rotation.reset()
	c.wavePhase.reset()

	c.opacity.start(NewTween(c.opacity.value, opacityTarget(s), OpacityDuration, EaseInOut), now)

	if s.Active() {
		c.pulse.start(pulseSchedule(pulseLeg(s)), now)
		c.rotation.start(rampSchedule(RotationPeriod), now)
		c.wavePhase.start(rampSchedule(wavePeriod(s)), now)
	}
	c.at = now
}

// Tick advances every running schedule to the clock's current time and
// returns the resulting frame.
func (c *Controller) Tick() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for _, sig := range c.signals() {
		sig.advance(now)
	}
	c.at = now
	return c.frameLocked()
}

// Frame returns the most recent consistent snapshot of all signals.
func (c *Controller) Frame() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameLocked()
}

// State returns the state the controller is configured for.
func (c *Controller) State() voice.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ActiveSchedules returns the number of signals with a running schedule.
func (c *Controller) ActiveSchedules() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, sig := range c.signals() {
		if sig.schedule != nil {
			n++
		}
	}
	return n
}

// LoopingSchedules returns the number of running schedules that repeat.
func (c *Controller) LoopingSchedules() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, sig := range c.signals() {
		if sig.schedule != nil && sig.schedule.Looping() {
			n++
		}
	}
	return n
}

// Schedule describes the schedule currently driving name.
func (c *Controller) Schedule(name SignalName) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sig := c.signal(name)
	if sig == nil || sig.schedule == nil {
		return Descriptor{}, false
	}
	return sig.schedule.Describe(), true
}

// Signals returns a description of each signal in SignalNames order.
func (c *Controller) Signals() []SignalInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SignalInfo, 0, len(SignalNames))
	for _, sig := range c.signals() {
		out = append(out, sig.info())
	}
	return out
}

func (c *Controller) frameLocked() Frame {
	return Frame{
		State:     c.state,
		Pulse:     c.pulse.value,
		Rotation:  c.rotation.value,
		WavePhase: c.wavePhase.value,
		Opacity:   c.opacity.value,
		At:        c.at,
	}
}

func (c *Controller) signals() []*signal {
	return []*signal{&c.pulse, &c.rotation, &c.wavePhase, &c.opacity}
}

func (c *Controller) signal(name SignalName) *signal {
	switch name {
	case SignalPulse:
		return &c.pulse
	case SignalRotation:
		return &c.rotation
	case SignalWavePhase:
		return &c.wavePhase
	case SignalOpacity:
		return &c.opacity
	default:
		return nil
	}
}

func opacityTarget(s voice.State) float64 {
	if s.Active() {
		return OpacityActive
	}
	return OpacityInactive
}

func pulseLeg(s voice.State) time.Duration {
	if s == voice.Listening {
		return PulseLegListening
	}
	return PulseLegDefault
}

func wavePeriod(s voice.State) time.Duration {
	if s == voice.Speaking {
		return WavePeriodSpeaking
	}
	return WavePeriodDefault
}
