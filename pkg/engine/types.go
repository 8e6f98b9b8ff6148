package engine

import (
	"fmt"
	"time"
)

// PatchKind selects how a patch is applied.
type PatchKind string

const (
	// PatchKindMaxBoost raises a maximum quantity and then raises the
	// matching current quantity, clamped to the new maximum.
	PatchKindMaxBoost PatchKind = "max_boost"

	// PatchKindAdditive adds a delta to a single attribute.
	PatchKindAdditive PatchKind = "additive"
)

// PatchSpec describes one idempotent stat modification.
type PatchSpec struct {
	// ID uniquely identifies the patch, e.g. "max_health".
	ID string `json:"id"`

	// Kind selects the apply strategy.
	Kind PatchKind `json:"kind"`

	// Entity is the located entity the patch targets first.
	Entity string `json:"entity"`

	// Delta is added exactly once.
	Delta float64 `json:"delta"`

	// Candidates is the ordered Candidate Name List tried on the entity.
	Candidates []string `json:"candidates,omitempty"`

	// Chain is the dotted attribute chain tried on the entity when no
	// candidate accepts the delta.
	Chain []string `json:"chain,omitempty"`

	// Component is the entity holding the max/current pair of a max boost.
	Component string `json:"component,omitempty"`

	// MaxCandidates and CurrentCandidates name the max and current
	// attributes on the component.
	MaxCandidates     []string `json:"max_candidates,omitempty"`
	CurrentCandidates []string `json:"current_candidates,omitempty"`
}

// Validate checks that the patch can be attempted at all.
func (s PatchSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("patch id is required")
	}
	switch s.Kind {
	case PatchKindMaxBoost:
		if s.Component != "" && len(s.MaxCandidates) == 0 {
			return fmt.Errorf("patch %s: component requires max candidates", s.ID)
		}
	case PatchKindAdditive:
	default:
		return fmt.Errorf("patch %s: unknown kind %q", s.ID, s.Kind)
	}
	if len(s.Candidates) == 0 && len(s.Chain) == 0 && s.Component == "" {
		return fmt.Errorf("patch %s: needs candidates, a chain or a component", s.ID)
	}
	if s.Entity == "" && (len(s.Candidates) > 0 || len(s.Chain) > 0) {
		return fmt.Errorf("patch %s: candidates and chain require an entity", s.ID)
	}
	return nil
}

// PatchRecord tracks whether a patch has been applied. Applied only ever
// moves from false to true.
type PatchRecord struct {
	ID        string    `json:"id"`
	Applied   bool      `json:"applied"`
	Attempts  int       `json:"attempts"`
	AppliedAt time.Time `json:"applied_at,omitempty"`

	// Via names the path that succeeded, e.g. "candidates:MaxHealth".
	Via string `json:"via,omitempty"`

	// LastError is the most recent failure message.
	LastError string `json:"last_error,omitempty"`
}

// CompensationSpec configures the polling fallback.
type CompensationSpec struct {
	// Entity is the located object whose current quantity is watched.
	Entity string `json:"entity"`

	// Factor is the fraction of each observed decrease refunded, in [0, 1).
	Factor float64 `json:"factor"`

	CurrentCandidates []string `json:"current_candidates"`
	MaxCandidates     []string `json:"max_candidates"`
}

// ProbeSpec configures the event interception probe.
type ProbeSpec struct {
	TypeKeywords  []string `json:"type_keywords"`
	EventKeywords []string `json:"event_keywords"`
}

// Options configures a Runtime.
type Options struct {
	Patches       []PatchSpec      `json:"patches"`
	Compensation  CompensationSpec `json:"compensation"`
	Probe         ProbeSpec        `json:"probe"`
	RetryInterval time.Duration    `json:"retry_interval"`
	Deadline      time.Duration    `json:"deadline"`
}

const (
	// DefaultRetryInterval is the pause between patch attempts.
	DefaultRetryInterval = time.Second

	// DefaultDeadline bounds the whole retry window.
	DefaultDeadline = 20 * time.Second
)

// Snapshot is a point-in-time view of a Runtime.
type Snapshot struct {
	Phase          Phase         `json:"phase"`
	Deadline       time.Time     `json:"deadline,omitempty"`
	Records        []PatchRecord `json:"records"`
	AllApplied     bool          `json:"all_applied"`
	Hooked         bool          `json:"hooked"`
	Baseline       float64       `json:"baseline,omitempty"`
	HasBaseline    bool          `json:"has_baseline"`
	Refunds        int           `json:"refunds"`
	RefundTotal    float64       `json:"refund_total"`
	HookCandidates []string      `json:"hook_candidates,omitempty"`
}
