package engine

import (
	"context"
	"time"

	"github.com/openfroyo/stattweaks/pkg/locate"
)

// Locator finds live entities by name.
type Locator interface {
	Locate(ctx context.Context, name string) (locate.Match, error)
}

// HookProbe decides whether a live interception point for the damage event
// can be used instead of the compensation fallback.
type HookProbe interface {
	// TryConfirmHook reports true only when a hook is attached and confirmed.
	TryConfirmHook(ctx context.Context) bool
}

// EventPublisher receives runtime events. Publish is called from the tick
// goroutine and must not block for long.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Observer receives measurements for metrics. Labels are plain strings so
// metric backends need not import this package.
type Observer interface {
	ObservePatchAttempt(patchID string, applied bool)
	ObservePatchApplied(patchID string)
	ObserveRefund(amount float64)
	ObservePhase(phase string)
	ObserveError(class string)
	ObserveTick(d time.Duration)
}

// Event is a timeline entry emitted by the runtime.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Type is the type of event.
	Type EventType `json:"type"`

	// Timestamp is the tick time the event occurred at.
	Timestamp time.Time `json:"timestamp"`

	// Phase is the runtime phase after the event.
	Phase Phase `json:"phase"`

	// PatchID is the patch involved, if any.
	PatchID string `json:"patch_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Value carries the numeric payload, e.g. the refund amount.
	Value float64 `json:"value,omitempty"`

	// Details contains additional event-specific data.
	Details map[string]interface{} `json:"details,omitempty"`

	// Level is the log level (info, warning).
	Level string `json:"level"`
}
