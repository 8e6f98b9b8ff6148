package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
	"github.com/openfroyo/stattweaks/pkg/resolve"
)

// ErrorClass represents the kind of a discovery or patch failure. Every class
// is recovered locally; none is escalated to the host.
type ErrorClass string

const (
	// ErrorClassNotFound indicates that no candidate, chain or entity resolved.
	// This is the normal outcome while the host is still loading.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassTypeMismatch indicates a member that exists but is not numeric,
	// or rejects writes.
	ErrorClassTypeMismatch ErrorClass = "type_mismatch"

	// ErrorClassUnreachable indicates a cached target the host has destroyed.
	ErrorClassUnreachable ErrorClass = "unreachable"

	// ErrorClassProbeRisk indicates an interception candidate whose signature
	// cannot be confirmed, so attaching is refused.
	ErrorClassProbeRisk ErrorClass = "probe_risk"

	// ErrorClassInternal indicates a host panic or another unexpected failure.
	ErrorClassInternal ErrorClass = "internal"
)

// EngineError represents a classified error with patch context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// PatchID is the patch being applied, if any.
	PatchID string `json:"patch_id,omitempty"`

	// Entity is the entity being located or modified, if any.
	Entity string `json:"entity,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.PatchID != "" {
		msg += fmt.Sprintf(" (patch=%s)", e.PatchID)
	}
	if e.Entity != "" {
		msg += fmt.Sprintf(" (entity=%s)", e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is reports class equality for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewError creates an error of the given class.
func NewError(class ErrorClass, message string, err error) *EngineError {
	return &EngineError{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// WithPatch adds patch context to an error.
func (e *EngineError) WithPatch(id string) *EngineError {
	e.PatchID = id
	return e
}

// WithEntity adds entity context to an error.
func (e *EngineError) WithEntity(name string) *EngineError {
	e.Entity = name
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Classify returns the primary class of err.
func Classify(err error) ErrorClass {
	classes := Classes(err)
	if len(classes) == 0 {
		return ErrorClassInternal
	}
	return classes[0]
}

// Classes returns every class present in err's chain, most significant first.
// A failed candidate lookup is NotFound overall but may also carry the type
// mismatches that caused it.
func Classes(err error) []ErrorClass {
	if err == nil {
		return nil
	}

	var out []ErrorClass
	var ee *EngineError
	if errors.As(err, &ee) {
		out = append(out, ee.Class)
	}

	add := func(c ErrorClass) {
		for _, have := range out {
			if have == c {
				return
			}
		}
		out = append(out, c)
	}

	switch {
	case errors.Is(err, objmodel.ErrUnreachable):
		add(ErrorClassUnreachable)
	case errors.Is(err, resolve.ErrHostPanic):
		add(ErrorClassInternal)
	}
	if errors.Is(err, objmodel.ErrNotFound) || errors.Is(err, objmodel.ErrNull) {
		add(ErrorClassNotFound)
	}
	if errors.Is(err, objmodel.ErrTypeMismatch) || errors.Is(err, objmodel.ErrReadOnly) {
		add(ErrorClassTypeMismatch)
	}
	if len(out) == 0 {
		add(ErrorClassInternal)
	}
	return out
}

// IsNotFound returns true if err is classified as not found.
func IsNotFound(err error) bool {
	return hasClass(err, ErrorClassNotFound)
}

// IsTypeMismatch returns true if err carries a type mismatch.
func IsTypeMismatch(err error) bool {
	return hasClass(err, ErrorClassTypeMismatch)
}

// IsUnreachable returns true if err is classified as unreachable.
func IsUnreachable(err error) bool {
	return hasClass(err, ErrorClassUnreachable)
}

// IsProbeRisk returns true if err is classified as a probe risk.
func IsProbeRisk(err error) bool {
	return hasClass(err, ErrorClassProbeRisk)
}

func hasClass(err error, class ErrorClass) bool {
	for _, c := range Classes(err) {
		if c == class {
			return true
		}
	}
	return false
}

// errorLog logs each error class at most once per component and counts every
// occurrence.
type errorLog struct {
	logger   zerolog.Logger
	observer Observer
	seen     map[ErrorClass]bool
}

func newErrorLog(logger zerolog.Logger, observer Observer) *errorLog {
	return &errorLog{
		logger:   logger,
		observer: observer,
		seen:     make(map[ErrorClass]bool),
	}
}

// Record classifies err, counts it and logs classes not seen before.
func (l *errorLog) Record(err error, msg string) {
	if err == nil {
		return
	}
	for _, class := range Classes(err) {
		if l.observer != nil {
			l.observer.ObserveError(string(class))
		}
		if l.seen[class] {
			continue
		}
		l.seen[class] = true

		event := l.logger.Debug()
		if class == ErrorClassInternal || class == ErrorClassProbeRisk {
			event = l.logger.Warn()
		}
		event.Err(err).Str("class", string(class)).Msg(msg)
	}
}
