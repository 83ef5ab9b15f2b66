// Package anim drives the time-varying signals behind the Grace orb.
//
// A [Controller] owns four scalar signals (pulse, rotation, wave phase and
// opacity). Each signal runs at most one [Schedule]. When the conversation
// state changes the controller cancels every schedule and installs the
// schedule set for the new state in one critical section, so a [Frame] is
// never taken from a half-reconfigured controller.
//
// A [Scheduler] advances the controller once per tick and hands each frame
// to its subscribers:
//
//	ctrl := anim.NewController(voice.Inactive)
//	sched := anim.NewScheduler(ctrl, anim.DefaultFPS)
//	sched.Subscribe(func(f anim.Frame) { scene := renderer.Render(f) })
//	go sched.Run(ctx)
//
//	store.Subscribe(ctrl.OnStateChange)
package anim

import (
	"time"

	"github.com/teslashibe/go-grace/pkg/voice"
)

// Schedule timing for each voice state.
const (
	// OpacityDuration is the one-shot fade applied on every state change.
	OpacityDuration = 300 * time.Millisecond

	// PulseLegListening is the duration of each pulse leg while listening.
	PulseLegListening = 1500 * time.Millisecond

	// PulseLegDefault is the duration of each pulse leg in other active states.
	PulseLegDefault = 2000 * time.Millisecond

	// RotationPeriod is one full revolution of the rotation signal.
	RotationPeriod = 20 * time.Second

	// WavePeriodSpeaking is one wave phase sweep while speaking.
	WavePeriodSpeaking = 3 * time.Second

	// WavePeriodDefault is one wave phase sweep in other active states.
	WavePeriodDefault = 5 * time.Second
)

// Opacity targets.
const (
	OpacityActive   = 1.0
	OpacityInactive = 0.5
)

// DefaultFPS is the frame rate used by the scheduler when none is given.
const DefaultFPS = 30.0

// SignalName identifies one of the controller's signals.
type SignalName string

const (
	SignalPulse     SignalName = "pulse"
	SignalRotation  SignalName = "rotation"
	SignalWavePhase SignalName = "wave_phase"
	SignalOpacity   SignalName = "opacity"
)

// SignalNames lists the controller's signals in a stable order.
var SignalNames = []SignalName{SignalPulse, SignalRotation, SignalWavePhase, SignalOpacity}

// Frame is a consistent snapshot of all signals at one instant.
type Frame struct {
	State     voice.State `json:"state"`
	Pulse     float64     `json:"pulse"`
	Rotation  float64     `json:"rotation"`
	WavePhase float64     `json:"wave_phase"`
	Opacity   float64     `json:"opacity"`
	At        time.Time   `json:"at"`
}

// Value returns the frame's value for the named signal.
func (f Frame) Value(name SignalName) float64 {
	switch name {
	case SignalPulse:
		return f.Pulse
	case SignalRotation:
		return f.Rotation
	case SignalWavePhase:
		return f.WavePhase
	case SignalOpacity:
		return f.Opacity
	default:
		return 0
	}
}

// SignalInfo describes a signal and its active schedule, if any.
type SignalInfo struct {
	Name     SignalName  `json:"name"`
	Value    float64     `json:"value"`
	Active   bool        `json:"active"`
	Schedule *Descriptor `json:"schedule,omitempty"`
}

// FrameFunc receives frames produced by a Scheduler.
type FrameFunc func(Frame)
