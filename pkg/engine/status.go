package engine

import (
	"encoding/json"
	"fmt"
)

// Phase is the state of the runtime state machine.
type Phase string

const (
	// PhaseProbing is the initial phase before the first tick.
	PhaseProbing Phase = "probing"

	// PhaseRetrying attempts unapplied patches until all apply or the deadline passes.
	PhaseRetrying Phase = "retrying"

	// PhaseArmed means the retry window closed without a confirmed hook.
	PhaseArmed Phase = "armed"

	// PhaseSampling runs the compensation fallback every tick.
	PhaseSampling Phase = "sampling"

	// PhaseHooked means a live interception point was confirmed; the
	// fallback is never enabled.
	PhaseHooked Phase = "hooked"
)

// Phases lists every phase in transition order.
var Phases = []Phase{PhaseProbing, PhaseRetrying, PhaseArmed, PhaseSampling, PhaseHooked}

// IsValid checks if the phase is a known value.
func (p Phase) IsValid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Validate returns an error if the phase is invalid.
func (p Phase) Validate() error {
	if !p.IsValid() {
		return fmt.Errorf("invalid phase: %s", p)
	}
	return nil
}

// IsTerminalWindow reports whether the retry window has closed.
func (p Phase) IsTerminalWindow() bool {
	return p == PhaseArmed || p == PhaseSampling || p == PhaseHooked
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*p = Phase(str)
	return p.Validate()
}

// EventType represents the type of a runtime event.
type EventType string

const (
	// EventTypePhaseChanged indicates a state machine transition.
	EventTypePhaseChanged EventType = "phase_changed"

	// EventTypePatchApplied indicates a patch was applied.
	EventTypePatchApplied EventType = "patch_applied"

	// EventTypePatchClamped indicates the current quantity was raised after a max boost.
	EventTypePatchClamped EventType = "patch_clamped"

	// EventTypeHookCandidate indicates the probe saw an interception candidate.
	EventTypeHookCandidate EventType = "hook_candidate"

	// EventTypeWindowClosed indicates the retry window ended.
	EventTypeWindowClosed EventType = "window_closed"

	// EventTypeBaseline indicates the fallback recorded a baseline.
	EventTypeBaseline EventType = "baseline"

	// EventTypeRefund indicates the fallback refunded part of a decrease.
	EventTypeRefund EventType = "refund"

	// EventTypeWarning indicates a recovered failure worth surfacing.
	EventTypeWarning EventType = "warning"

	// EventTypeItemGranted indicates the buff item reached the player.
	EventTypeItemGranted EventType = "item_granted"

	// EventTypeItemGrantFailed indicates the grant gave up.
	EventTypeItemGrantFailed EventType = "item_grant_failed"
)

// Severity returns the severity level of the event type.
func (e EventType) Severity() string {
	switch e {
	case EventTypeWarning, EventTypeHookCandidate, EventTypeItemGrantFailed:
		return "warning"
	default:
		return "info"
	}
}
