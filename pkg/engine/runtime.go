package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Dependencies are the collaborators of a Runtime. Only Locator is required.
type Dependencies struct {
	Locator   Locator
	Probe     HookProbe
	Publisher EventPublisher
	Observer  Observer
	Logger    zerolog.Logger
}

// Runtime is the tick-driven state machine that sequences patch attempts,
// the interception probe and the compensation fallback:
//
//	probing --first tick--> retrying --deadline--> armed --next tick--> sampling
//	                                  \--deadline, hook confirmed--> hooked
//
// Suspension is modelled as returning from Tick; the deadline is an absolute
// time so progress does not depend on tick frequency. A Runtime must be
// driven from a single goroutine.
type Runtime struct {
	opts Options

	phase       Phase
	deadline    time.Time
	nextAttempt time.Time
	attempts    int
	hooked      bool

	patcher     *Patcher
	probe       HookProbe
	compensator *Compensator

	logger   zerolog.Logger
	observer Observer
	events   *emitter
	now      time.Time
}

// NewRuntime creates a runtime in PhaseProbing.
func NewRuntime(opts Options, deps Dependencies) *Runtime {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}

	logger := deps.Logger.With().Str("component", "engine.runtime").Logger()
	r := &Runtime{
		opts:     opts,
		phase:    PhaseProbing,
		probe:    deps.Probe,
		logger:   logger,
		observer: deps.Observer,
		events:   &emitter{publisher: deps.Publisher, logger: logger, phase: PhaseProbing},
	}

	r.patcher = NewPatcher(deps.Locator, opts.Patches, deps.Logger, deps.Observer)
	r.patcher.events = r.events
	r.compensator = NewCompensator(deps.Locator, opts.Compensation, deps.Logger, deps.Observer)
	r.compensator.events = r.events

	if p, ok := deps.Probe.(*EventProbe); ok {
		p.events = r.events
		p.clock = func() time.Time { return r.now }
	}
	return r
}

// Phase returns the current phase.
func (r *Runtime) Phase() Phase {
	return r.phase
}

// Deadline returns the absolute end of the retry window. It is zero before the first tick.
func (r *Runtime) Deadline() time.Time {
	return r.deadline
}

// Tick advances the state machine to now and returns the resulting phase.
func (r *Runtime) Tick(ctx context.Context, now time.Time) Phase {
	start := time.Now()
	r.now = now
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("panic", fmt.Sprint(rec)).Msg("Tick recovered from panic")
		}
		if r.observer != nil {
			r.observer.ObserveTick(time.Since(start))
		}
	}()

	switch r.phase {
	case PhaseProbing:
		r.deadline = now.Add(r.opts.Deadline)
		r.setPhase(ctx, now, PhaseRetrying)
		r.logger.Info().
			Time("deadline", r.deadline).
			Int("patches", len(r.opts.Patches)).
			Msg("Patch window opened")
		r.attempt(ctx, now)

	case PhaseRetrying:
		if !now.Before(r.deadline) {
			r.closeWindow(ctx, now)
			return r.phase
		}
		if !r.patcher.AllApplied() && !now.Before(r.nextAttempt) {
			r.attempt(ctx, now)
		}

	case PhaseArmed:
		r.setPhase(ctx, now, PhaseSampling)
		r.compensator.Sample(ctx, now)

	case PhaseSampling:
		r.compensator.Sample(ctx, now)

	case PhaseHooked:
	}

	return r.phase
}

// attempt runs one patch attempt and one probe while inside the window.
func (r *Runtime) attempt(ctx context.Context, now time.Time) {
	if !now.Before(r.deadline) {
		return
	}
	r.attempts++
	r.nextAttempt = now.Add(r.opts.RetryInterval)

	all := r.patcher.TryApplyAll(ctx, now)
	if !r.hooked && r.probe != nil {
		r.hooked = r.probe.TryConfirmHook(ctx)
	}

	event := r.logger.Debug()
	if all {
		event = r.logger.Info()
	}
	event.Int("attempt", r.attempts).
		Bool("all_applied", all).
		Bool("hooked", r.hooked).
		Msg("Patch attempt finished")
}

// closeWindow ends retrying and selects exactly one correction mechanism.
func (r *Runtime) closeWindow(ctx context.Context, now time.Time) {
	records := r.patcher.Records()
	applied := 0
	for _, rec := range records {
		if rec.Applied {
			applied++
		}
	}

	r.logger.Info().
		Int("applied", applied).
		Int("patches", len(records)).
		Int("attempts", r.attempts).
		Bool("hooked", r.hooked).
		Msg("Patch window closed")

	next := PhaseArmed
	if r.hooked {
		next = PhaseHooked
	}
	r.events.emit(ctx, now, EventTypeWindowClosed, "",
		fmt.Sprintf("%d/%d patches applied after %d attempts", applied, len(records), r.attempts),
		float64(applied), map[string]interface{}{"attempts": r.attempts, "hooked": r.hooked})
	r.setPhase(ctx, now, next)
}

func (r *Runtime) setPhase(ctx context.Context, now time.Time, next Phase) {
	if r.phase == next {
		return
	}
	prev := r.phase
	r.phase = next
	r.events.phase = next

	if r.observer != nil {
		r.observer.ObservePhase(string(next))
	}
	r.logger.Info().Str("from", string(prev)).Str("to", string(next)).Msg("Phase changed")
	r.events.emit(ctx, now, EventTypePhaseChanged, "", fmt.Sprintf("%s -> %s", prev, next), 0,
		map[string]interface{}{"from": string(prev), "to": string(next)})
}

// Snapshot returns the current runtime state.
func (r *Runtime) Snapshot() Snapshot {
	baseline, tracking := r.compensator.Baseline()
	refunds, total := r.compensator.Refunds()

	s := Snapshot{
		Phase:       r.phase,
		Deadline:    r.deadline,
		Records:     r.patcher.Records(),
		AllApplied:  r.patcher.AllApplied(),
		Hooked:      r.hooked,
		Baseline:    baseline,
		HasBaseline: tracking,
		Refunds:     refunds,
		RefundTotal: total,
	}
	if p, ok := r.probe.(*EventProbe); ok {
		s.HookCandidates = p.Candidates()
	}
	return s
}
