package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

var (
	// DefaultProbeTypeKeywords select types that may carry the damage event.
	DefaultProbeTypeKeywords = []string{"Damage", "Combat"}

	// DefaultProbeEventKeywords select candidate damage events.
	DefaultProbeEventKeywords = []string{"OnBeforeDamageApplied", "OnCalculateDamage", "DamageCalculated"}
)

// EventProbe enumerates host types looking for a damage interception point.
// It never attaches: the handler signature of a discovered event cannot be
// confirmed, so every candidate is reported as a probe risk and the probe
// answers false. Callers then rely on the compensation fallback.
type EventProbe struct {
	host          objmodel.Host
	typeKeywords  []string
	eventKeywords []string
	candidates    []string
	logged        map[string]bool
	logger        zerolog.Logger
	errs          *errorLog
	events        *emitter
	clock         func() time.Time
}

// NewEventProbe creates a probe over host. Empty keyword lists fall back to the defaults.
func NewEventProbe(host objmodel.Host, spec ProbeSpec, logger zerolog.Logger, observer Observer) *EventProbe {
	logger = logger.With().Str("component", "engine.probe").Logger()
	if len(spec.TypeKeywords) == 0 {
		spec.TypeKeywords = DefaultProbeTypeKeywords
	}
	if len(spec.EventKeywords) == 0 {
		spec.EventKeywords = DefaultProbeEventKeywords
	}
	return &EventProbe{
		host:          host,
		typeKeywords:  spec.TypeKeywords,
		eventKeywords: spec.EventKeywords,
		logged:        make(map[string]bool),
		logger:        logger,
		errs:          newErrorLog(logger, observer),
		clock:         time.Now,
	}
}

// TryConfirmHook scans for candidates and always reports false.
func (p *EventProbe) TryConfirmHook(ctx context.Context) bool {
	defer func() {
		if r := recover(); r != nil {
			p.errs.Record(NewError(ErrorClassInternal, "probe panicked", fmt.Errorf("%v", r)), "Hook probe failed")
		}
	}()

	if p.host == nil {
		return false
	}

	for _, m := range p.host.Modules() {
		for _, t := range m.Types {
			if !containsAny(t.Name, p.typeKeywords) {
				continue
			}
			for _, ev := range t.Events() {
				if !containsAny(ev.Name, p.eventKeywords) {
					continue
				}
				p.report(ctx, t.FullName+"."+ev.Name, ev.ValueType)
			}
		}
	}
	return false
}

// Candidates returns every interception candidate seen so far, in discovery order.
func (p *EventProbe) Candidates() []string {
	out := make([]string, len(p.candidates))
	copy(out, p.candidates)
	return out
}

func (p *EventProbe) report(ctx context.Context, candidate, handler string) {
	if p.logged[candidate] {
		return
	}
	p.logged[candidate] = true
	p.candidates = append(p.candidates, candidate)

	p.errs.Record(NewError(ErrorClassProbeRisk, "handler signature unconfirmed", nil).WithDetail("candidate", candidate),
		"Damage event candidate found, not attaching")
	p.logger.Info().
		Str("candidate", candidate).
		Str("handler", handler).
		Msg("Damage event candidate discovered, hook not attached")
	p.events.emit(ctx, p.clock(), EventTypeHookCandidate, "", candidate, 0,
		map[string]interface{}{"handler": handler})
}

// containsAny reports whether name contains any keyword, ignoring case.
func containsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
