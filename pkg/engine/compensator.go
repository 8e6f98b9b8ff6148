package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/stattweaks/pkg/resolve"
)

// SampleOutcome describes what one compensation sample did.
type SampleOutcome string

const (
	SampleSkipped  SampleOutcome = "skipped"
	SampleBaseline SampleOutcome = "baseline"
	SampleRefund   SampleOutcome = "refund"
	SampleTracked  SampleOutcome = "tracked"
)

// SampleResult is the outcome of one Compensator.Sample call.
type SampleResult struct {
	Outcome SampleOutcome
	Reason  string
	Current float64
	Refund  float64
}

// Compensator approximates a damage reduction by refunding a fraction of
// every observed decrease of the current quantity. It cannot tell damage from
// other decreases; this is an accepted approximation.
type Compensator struct {
	locator  Locator
	spec     CompensationSpec
	baseline float64
	tracking bool
	refunds  int
	refunded float64
	logger   zerolog.Logger
	errs     *errorLog
	observer Observer
	events   *emitter
}

// NewCompensator creates a compensator for spec.
func NewCompensator(locator Locator, spec CompensationSpec, logger zerolog.Logger, observer Observer) *Compensator {
	logger = logger.With().Str("component", "engine.compensator").Logger()
	return &Compensator{
		locator:  locator,
		spec:     spec,
		logger:   logger,
		errs:     newErrorLog(logger, observer),
		observer: observer,
	}
}

// Sample reads the watched quantity once and refunds part of any decrease
// since the previous sample.
func (c *Compensator) Sample(ctx context.Context, now time.Time) (res SampleResult) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.compensation_sample")
	defer func() {
		if r := recover(); r != nil {
			c.errs.Record(NewError(ErrorClassInternal, "sample panicked", fmt.Errorf("%v", r)), "Compensation sample failed")
			res = SampleResult{Outcome: SampleSkipped, Reason: "panic"}
		}
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		span.End()
	}()

	match, err := c.locator.Locate(ctx, c.spec.Entity)
	if err != nil {
		c.errs.Record(err, "Compensation target not located")
		return SampleResult{Outcome: SampleSkipped, Reason: "not located"}
	}
	if match.Relocated {
		c.errs.Record(NewError(ErrorClassUnreachable, "cached target destroyed", nil).WithEntity(c.spec.Entity), "Compensation target relocated")
	}
	obj := match.Object

	cur, err := resolve.ReadFirst(obj, c.spec.CurrentCandidates)
	if err != nil {
		c.errs.Record(err, "Current quantity unreadable")
		return SampleResult{Outcome: SampleSkipped, Reason: "current unreadable"}
	}
	maxV, err := resolve.ReadFirst(obj, c.spec.MaxCandidates)
	if err != nil {
		c.errs.Record(err, "Max quantity unreadable")
		return SampleResult{Outcome: SampleSkipped, Reason: "max unreadable"}
	}
	if cur <= 0 || maxV <= 0 {
		return SampleResult{Outcome: SampleSkipped, Reason: "non-positive", Current: cur}
	}

	if !c.tracking {
		c.baseline = cur
		c.tracking = true
		c.logger.Debug().Float64("baseline", cur).Msg("Compensation baseline recorded")
		c.events.emit(ctx, now, EventTypeBaseline, "", fmt.Sprintf("baseline %g", cur), cur, nil)
		return SampleResult{Outcome: SampleBaseline, Current: cur}
	}

	if cur >= c.baseline {
		c.baseline = cur
		return SampleResult{Outcome: SampleTracked, Current: cur}
	}

	delta := c.baseline - cur
	refund := delta * c.spec.Factor
	if _, _, err := resolve.AddFirst(obj, c.spec.CurrentCandidates, refund); err != nil {
		c.errs.Record(err, "Refund write failed")
		refund = 0
	}

	after, err := resolve.ReadFirst(obj, c.spec.CurrentCandidates)
	if err != nil {
		// Re-baseline on the next successful read.
		c.tracking = false
		c.errs.Record(err, "Current quantity unreadable after refund")
		return SampleResult{Outcome: SampleRefund, Refund: refund, Current: cur + refund}
	}
	c.baseline = after

	if refund > 0 {
		c.refunds++
		c.refunded += refund
		if c.observer != nil {
			c.observer.ObserveRefund(refund)
		}
		span.SetAttributes(attribute.Float64("refund", refund))
		c.logger.Info().
			Float64("decrease", delta).
			Float64("refund", refund).
			Float64("current", after).
			Msg("Refund applied")
		c.events.emit(ctx, now, EventTypeRefund, "",
			fmt.Sprintf("refund +%.2f => %.2f", refund, after), refund,
			map[string]interface{}{"decrease": delta, "current": after})
	}
	return SampleResult{Outcome: SampleRefund, Refund: refund, Current: after}
}

// Baseline returns the last recorded value and whether one exists.
func (c *Compensator) Baseline() (float64, bool) {
	return c.baseline, c.tracking
}

// Refunds returns the number of refunds and their total.
func (c *Compensator) Refunds() (int, float64) {
	return c.refunds, c.refunded
}
