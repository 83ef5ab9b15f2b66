package anim

import "time"

// Schedule produces a signal value as a function of time since it started.
type Schedule interface {
	// Value returns the signal value after elapsed time.
	Value(elapsed time.Duration) float64

	// Done reports whether the schedule has finished. Loops never finish.
	Done(elapsed time.Duration) bool

	// Duration is the length of one pass through the schedule.
	Duration() time.Duration

	// Looping reports whether the schedule repeats forever.
	Looping() bool

	// Describe returns an inspectable description of the schedule.
	Describe() Descriptor
}

// Descriptor is a plain description of a schedule, used for inspection.
type Descriptor struct {
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
	From     float64       `json:"from"`
	To       float64       `json:"to"`
	Looping  bool          `json:"looping"`
	Legs     []Descriptor  `json:"legs,omitempty"`
}

// Tween moves from one value to another over a fixed duration.
type Tween struct {
	From   float64
	To     float64
	Length time.Duration
	Ease   Easing
}

// NewTween creates a one-shot tween. A nil easing is linear.
func NewTween(from, to float64, d time.Duration, ease Easing) *Tween {
	if ease == nil {
		ease = Linear
	}
	return &Tween{From: from, To: to, Length: d, Ease: ease}
}

// Value implements Schedule.
func (t *Tween) Value(elapsed time.Duration) float64 {
	return lerp(t.From, t.To, t.Ease(progress(elapsed, t.Length)))
}

// Done implements Schedule.
func (t *Tween) Done(elapsed time.Duration) bool {
	return elapsed >= t.Length
}

// Duration implements Schedule.
func (t *Tween) Duration() time.Duration {
	return t.Length
}

// Looping implements Schedule.
func (t *Tween) Looping() bool {
	return false
}

// Describe implements Schedule.
func (t *Tween) Describe() Descriptor {
	return Descriptor{Kind: "tween", Duration: t.Length, From: t.From, To: t.To}
}

// Sequence plays tweens one after another.
type Sequence struct {
	Legs []*Tween
}

// NewSequence creates a sequence of legs.
func NewSequence(legs ...*Tween) *Sequence {
	return &Sequence{Legs: legs}
}

// Value implements Schedule.
func (s *Sequence) Value(elapsed time.Duration) float64 {
	if len(s.Legs) == 0 {
		return 0
	}
	for _, leg := range s.Legs {
		if elapsed < leg.Length {
			return leg.Value(elapsed)
		}
		elapsed -= leg.Length
	}
	last := s.Legs[len(s.Legs)-1]
	return last.Value(last.Length)
}

// Done implements Schedule.
func (s *Sequence) Done(elapsed time.Duration) bool {
	return elapsed >= s.Duration()
}

// Duration implements Schedule.
func (s *Sequence) Duration() time.Duration {
	var total time.Duration
	for _, leg := range s.Legs {
		total += leg.Length
	}
	return total
}

// Looping implements Schedule.
func (s *Sequence) Looping() bool {
	return false
}

// Describe implements Schedule.
func (s *Sequence) Describe() Descriptor {
	d := Descriptor{Kind: "sequence", Duration: s.Duration()}
	if len(s.Legs) > 0 {
		d.From = s.Legs[0].From
		d.To = s.Legs[len(s.Legs)-1].To
	}
	for _, leg := range s.Legs {
		d.Legs = append(d.Legs, leg.Describe())
	}
	return d
}

// Loop repeats a finite schedule forever, restarting at the end of each pass.
type Loop struct {
	Body Schedule
}

// NewLoop wraps body in an endless loop.
func NewLoop(body Schedule) *Loop {
	return &Loop{Body: body}
}

// Value implements Schedule.
func (l *Loop) Value(elapsed time.Duration) float64 {
	period := l.Body.Duration()
	if period <= 0 {
		return l.Body.Value(0)
	}
	return l.Body.Value(elapsed % period)
}

// Done implements Schedule.
func (l *Loop) Done(time.Duration) bool {
	return false
}

// Duration implements Schedule.
func (l *Loop) Duration() time.Duration {
	return l.Body.Duration()
}

// Looping implements Schedule.
func (l *Loop) Looping() bool {
	return true
}

// Describe implements Schedule.
func (l *Loop) Describe() Descriptor {
	d := l.Body.Describe()
	d.Looping = true
	return d
}

// pulseSchedule is the triangle wave 0 -> 1 -> 0 with eased legs.
func pulseSchedule(leg time.Duration) Schedule {
	return NewLoop(NewSequence(
		NewTween(0, 1, leg, EaseInOut),
		NewTween(1, 0, leg, EaseInOut),
	))
}

// rampSchedule is a linear 0 -> 1 ramp that wraps.
func rampSchedule(period time.Duration) Schedule {
	return NewLoop(NewTween(0, 1, period, Linear))
}
