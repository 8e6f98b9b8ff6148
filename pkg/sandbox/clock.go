package sandbox

import (
	"context"
	"time"
)

// Simulation advances a fixture one frame at a time on a simulated clock.
type Simulation struct {
	Fixture  *Fixture
	Scenario *Scenario

	start time.Time
	step  time.Duration
	frame int
}

// NewSimulation creates a simulation starting at start with frames step apart.
// scenario may be nil.
func NewSimulation(fx *Fixture, scenario *Scenario, start time.Time, step time.Duration) *Simulation {
	if step <= 0 {
		step = time.Second / 60
	}
	return &Simulation{Fixture: fx, Scenario: scenario, start: start, step: step}
}

// Advance runs the scenario for the next frame and returns that frame's
// time. phase is passed to on_tick as t.phase.
func (s *Simulation) Advance(ctx context.Context, phase string) (time.Time, error) {
	tick := Tick{
		Frame:   s.frame,
		Elapsed: time.Duration(s.frame) * s.step,
		Phase:   phase,
	}
	s.frame++
	now := s.start.Add(tick.Elapsed)
	if s.Scenario == nil {
		return now, nil
	}
	if _, err := s.Scenario.Run(ctx, tick); err != nil {
		return now, err
	}
	return now, nil
}

// Frame returns the number of frames advanced so far.
func (s *Simulation) Frame() int {
	return s.frame
}
