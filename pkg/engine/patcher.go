package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openfroyo/stattweaks/pkg/resolve"
)

const tracerName = "github.com/openfroyo/stattweaks/pkg/engine"

// Patcher applies each PatchSpec at most once. It is not safe for
// concurrent use.
type Patcher struct {
	locator  Locator
	specs    []PatchSpec
	records  map[string]*PatchRecord
	logger   zerolog.Logger
	errs     *errorLog
	observer Observer
	events   *emitter
}

// NewPatcher creates a patcher for specs. Specs failing validation are kept
// with a record that can never be applied, and the problem is logged.
func NewPatcher(locator Locator, specs []PatchSpec, logger zerolog.Logger, observer Observer) *Patcher {
	logger = logger.With().Str("component", "engine.patcher").Logger()
	p := &Patcher{
		locator:  locator,
		specs:    specs,
		records:  make(map[string]*PatchRecord, len(specs)),
		logger:   logger,
		errs:     newErrorLog(logger, observer),
		observer: observer,
	}
	for _, spec := range specs {
		p.records[spec.ID] = &PatchRecord{ID: spec.ID}
		if err := spec.Validate(); err != nil {
			p.records[spec.ID].LastError = err.Error()
			logger.Warn().Err(err).Msg("Invalid patch spec")
		}
	}
	return p
}

// TryApplyAll attempts every unapplied patch once and returns whether all
// patches are now applied. Applied patches are never touched again.
func (p *Patcher) TryApplyAll(ctx context.Context, now time.Time) bool {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.try_apply_all")
	defer span.End()

	all := true
	for _, spec := range p.specs {
		rec := p.records[spec.ID]
		if rec.Applied {
			continue
		}
		if spec.Validate() != nil {
			all = false
			continue
		}

		rec.Attempts++
		via, err := p.attempt(ctx, now, spec)
		if p.observer != nil {
			p.observer.ObservePatchAttempt(spec.ID, err == nil)
		}
		if err != nil {
			rec.LastError = err.Error()
			p.errs.Record(NewError(Classify(err), "patch attempt failed", err).WithPatch(spec.ID), "Patch attempt failed")
			all = false
			continue
		}

		rec.Applied = true
		rec.AppliedAt = now
		rec.Via = via
		rec.LastError = ""
		if p.observer != nil {
			p.observer.ObservePatchApplied(spec.ID)
		}
		p.logger.Info().
			Str("patch", spec.ID).
			Float64("delta", spec.Delta).
			Str("via", via).
			Int("attempts", rec.Attempts).
			Msg("Patch applied")
		p.events.emit(ctx, now, EventTypePatchApplied, spec.ID,
			fmt.Sprintf("%s += %g via %s", spec.ID, spec.Delta, via), spec.Delta,
			map[string]interface{}{"via": via, "attempts": rec.Attempts})
	}

	span.SetAttributes(attribute.Bool("all_applied", all))
	return all
}

// AllApplied reports whether every patch has been applied.
func (p *Patcher) AllApplied() bool {
	for _, rec := range p.records {
		if !rec.Applied {
			return false
		}
	}
	return true
}

// Records returns a copy of the patch records in spec order.
func (p *Patcher) Records() []PatchRecord {
	out := make([]PatchRecord, 0, len(p.specs))
	for _, spec := range p.specs {
		out = append(out, *p.records[spec.ID])
	}
	return out
}

// attempt applies one patch, converting host panics into errors.
func (p *Patcher) attempt(ctx context.Context, now time.Time, spec PatchSpec) (via string, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.patch_attempt")
	span.SetAttributes(attribute.String("patch", spec.ID), attribute.String("kind", string(spec.Kind)))
	defer func() {
		if r := recover(); r != nil {
			via = ""
			err = NewError(ErrorClassInternal, "patch attempt panicked", fmt.Errorf("%w: %v", resolve.ErrHostPanic, r))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("via", via))
		}
		span.End()
	}()

	switch spec.Kind {
	case PatchKindMaxBoost:
		return p.applyMaxBoost(ctx, now, spec)
	default:
		return p.applyAdditive(ctx, spec)
	}
}

// applyAdditive adds the delta through the candidate list, then the chain.
func (p *Patcher) applyAdditive(ctx context.Context, spec PatchSpec) (string, error) {
	match, err := p.locator.Locate(ctx, spec.Entity)
	if err != nil {
		return "", err
	}
	if match.Relocated {
		p.errs.Record(NewError(ErrorClassUnreachable, "cached target destroyed", nil).WithEntity(spec.Entity), "Target relocated")
	}

	var errs []error
	if len(spec.Candidates) > 0 {
		acc, _, err := resolve.AddFirst(match.Object, spec.Candidates, spec.Delta)
		if err == nil {
			return "candidates:" + acc.Name(), nil
		}
		errs = append(errs, err)
	}
	if len(spec.Chain) > 0 {
		_, _, err := resolve.AddChain(match.Object, spec.Chain, spec.Delta)
		if err == nil {
			return "chain:" + strings.Join(spec.Chain, "."), nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// applyMaxBoost raises the maximum through (a) the entity's candidate list,
// (b) the entity's chain, (c) the component's max candidates; then raises the
// component's current quantity, clamped to the new maximum.
func (p *Patcher) applyMaxBoost(ctx context.Context, now time.Time, spec PatchSpec) (string, error) {
	var (
		via  string
		errs []error
	)

	if spec.Entity != "" && (len(spec.Candidates) > 0 || len(spec.Chain) > 0) {
		v, err := p.applyAdditive(ctx, spec)
		if err == nil {
			via = v
		} else {
			errs = append(errs, err)
		}
	}

	if via == "" && spec.Component != "" {
		match, err := p.locator.Locate(ctx, spec.Component)
		if err == nil {
			var acc *resolve.Accessor
			acc, _, err = resolve.AddFirst(match.Object, spec.MaxCandidates, spec.Delta)
			if err == nil {
				via = "component:" + acc.Name()
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if via == "" {
		if len(errs) == 0 {
			return "", NewError(ErrorClassNotFound, "no lookup path configured", nil).WithPatch(spec.ID)
		}
		return "", errors.Join(errs...)
	}

	p.clampCurrent(ctx, now, spec)
	return via, nil
}

// clampCurrent sets current to min(current+delta, max) on the component.
// Failure here does not undo the applied boost.
func (p *Patcher) clampCurrent(ctx context.Context, now time.Time, spec PatchSpec) {
	if spec.Component == "" || len(spec.CurrentCandidates) == 0 {
		return
	}
	match, err := p.locator.Locate(ctx, spec.Component)
	if err != nil {
		p.errs.Record(err, "Clamp skipped, component not located")
		return
	}

	cur, err := resolve.ReadFirst(match.Object, spec.CurrentCandidates)
	if err != nil {
		p.errs.Record(err, "Clamp skipped, current unreadable")
		return
	}
	maxV, err := resolve.ReadFirst(match.Object, spec.MaxCandidates)
	if err != nil {
		p.errs.Record(err, "Clamp skipped, max unreadable")
		return
	}
	if cur < 0 || maxV <= 0 {
		return
	}

	want := math.Min(cur+spec.Delta, maxV)
	if _, err := resolve.SetFirst(match.Object, spec.CurrentCandidates, want); err != nil {
		p.errs.Record(err, "Clamp write failed")
		return
	}

	p.logger.Info().
		Str("patch", spec.ID).
		Float64("current", want).
		Float64("max", maxV).
		Msg("Current raised after max boost")
	p.events.emit(ctx, now, EventTypePatchClamped, spec.ID,
		fmt.Sprintf("current -> %g (max %g)", want, maxV), want,
		map[string]interface{}{"max": maxV})
}
