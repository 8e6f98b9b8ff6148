package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not block a run.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the profile from running.
	SeverityError Severity = "error"

	// SeverityCritical blocks the profile and is reported first.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity rejects a profile.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description.
	Description string `json:"description" yaml:"description"`

	// Rego contains the Rego policy code. The package must define a deny set.
	Rego string `json:"rego" yaml:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity" yaml:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Builtin marks policies shipped with the engine.
	Builtin bool `json:"builtin,omitempty" yaml:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Violation is a single policy finding.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// Path locates the offending profile field, e.g. "patches[0].delta".
	Path string `json:"path,omitempty"`

	Message  string   `json:"message"`
	Severity Severity `json:"severity"`

	Details map[string]interface{} `json:"details,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the result of evaluating a profile.
type Result struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists blocking findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking findings.
	Warnings []Violation `json:"warnings,omitempty"`

	// Failures lists policies that could not be evaluated.
	Failures []string `json:"failures,omitempty"`

	EvaluatedAt       time.Time     `json:"evaluated_at"`
	EvaluatedPolicies []string      `json:"evaluated_policies"`
	Duration          time.Duration `json:"duration"`
}

// Input is the document policies see as input.
type Input struct {
	// Profile is the profile in its JSON form.
	Profile map[string]interface{} `json:"profile"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// Context provides information about the evaluation.
type Context struct {
	// Operation is what the profile is checked for, e.g. "validate" or "run".
	Operation string `json:"operation,omitempty"`

	// Source is the profile file, or "inline".
	Source string `json:"source,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Params are engine-wide limits exposed to policies as data.stattweaks.params.
type Params struct {
	// MaxDelta bounds every patch delta.
	MaxDelta float64 `json:"max_delta"`

	// MaxDeadlineSeconds bounds the retry window.
	MaxDeadlineSeconds float64 `json:"max_deadline_seconds"`
}

// DefaultParams returns the stock limits.
func DefaultParams() Params {
	return Params{
		MaxDelta:           500,
		MaxDeadlineSeconds: 600,
	}
}
