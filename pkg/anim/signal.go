package anim

import "time"

// signal is one animated scalar and the schedule currently driving it.
type signal struct {
	name     SignalName
	value    float64
	schedule Schedule
	startAt  time.Time
}

// start replaces any running schedule with s, beginning at now.
func (s *signal) start(sched Schedule, now time.Time) {
	s.schedule = sched
	s.startAt = now
	s.value = sched.Value(0)
}

// cancel stops the running schedule, leaving the value where it is.
func (s *signal) cancel() {
	s.schedule = nil
}

// reset cancels the schedule and puts the signal back at zero.
func (s *signal) reset() {
	s.schedule = nil
	s.value = 0
}

// advance samples the schedule at now. Finished one-shots are retired
// after their final value is applied.
func (s *signal) advance(now time.Time) {
	if s.schedule == nil {
		return
	}
	elapsed := now.Sub(s.startAt)
	if elapsed < 0 {
		elapsed = 0
	}
	s.value = s.schedule.Value(elapsed)
	if s.schedule.Done(elapsed) {
		s.schedule = nil
	}
}

func (s *signal) info() SignalInfo {
	info := SignalInfo{Name: s.name, Value: s.value, Active: s.schedule != nil}
	if s.schedule != nil {
		d := s.schedule.Describe()
		info.Schedule = &d
	}
	return info
}
