package anim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler advances a Controller once per tick and fans each frame out to
// subscribers.
type Scheduler struct {
	ctrl *Controller
	fps  float64

	mu     sync.RWMutex
	sinks  map[int]FrameFunc
	nextID int

	frames atomic.Uint64
}

// NewScheduler creates a scheduler for ctrl. A non-positive fps uses
// DefaultFPS.
func NewScheduler(ctrl *Controller, fps float64) *Scheduler {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Scheduler{
		ctrl:  ctrl,
		fps:   fps,
		sinks: make(map[int]FrameFunc),
	}
}

// FPS returns the configured frame rate.
func (s *Scheduler) FPS() float64 {
	return s.fps
}

// Interval returns the time between ticks.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(float64(time.Second) / s.fps)
}

// Subscribe registers fn for every frame and returns a function that
// removes it.
func (s *Scheduler) Subscribe(fn FrameFunc) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.sinks[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.sinks, id)
		s.mu.Unlock()
	}
}

// Step advances the controller once and delivers the frame.
func (s *Scheduler) Step() Frame {
	frame := s.ctrl.Tick()
	s.frames.Add(1)

	s.mu.RLock()
	sinks := make([]FrameFunc, 0, len(s.sinks))
	for _, fn := range s.sinks {
		sinks = append(sinks, fn)
	}
	s.mu.RUnlock()

	for _, fn := range sinks {
		fn(frame)
	}
	return frame
}

// Frames returns the number of frames produced so far.
func (s *Scheduler) Frames() uint64 {
	return s.frames.Load()
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}
