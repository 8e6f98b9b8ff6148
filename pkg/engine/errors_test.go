package engine

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
	"github.com/openfroyo/stattweaks/pkg/resolve"
)

func TestClassify(t *testing.T) {
	lookup := &resolve.LookupError{
		TypeName:   "Player",
		Candidates: []string{"MaxHealth"},
		Causes:     []error{fmt.Errorf("Player.MaxHealth: %w", objmodel.ErrTypeMismatch)},
	}

	tests := []struct {
		name string
		err  error
		want []ErrorClass
	}{
		{"nil", nil, nil},
		{"not found", fmt.Errorf("x: %w", objmodel.ErrNotFound), []ErrorClass{ErrorClassNotFound}},
		{"null hop", objmodel.ErrNull, []ErrorClass{ErrorClassNotFound}},
		{"lookup with mismatch", lookup, []ErrorClass{ErrorClassNotFound, ErrorClassTypeMismatch}},
		{"read-only", objmodel.ErrReadOnly, []ErrorClass{ErrorClassTypeMismatch}},
		{"unreachable", objmodel.ErrUnreachable, []ErrorClass{ErrorClassUnreachable}},
		{"panic", fmt.Errorf("%w: boom", resolve.ErrHostPanic), []ErrorClass{ErrorClassInternal}},
		{"probe risk", NewError(ErrorClassProbeRisk, "unconfirmed", nil), []ErrorClass{ErrorClassProbeRisk}},
		{"wrapped engine error", NewError(ErrorClassNotFound, "attempt", objmodel.ErrReadOnly), []ErrorClass{ErrorClassNotFound, ErrorClassTypeMismatch}},
		{"unknown", errors.New("disk full"), []ErrorClass{ErrorClassInternal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classes(tt.err); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineErrorPredicates(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError(ErrorClassProbeRisk, "candidate", nil).WithPatch("hook"))
	if !IsProbeRisk(err) || IsNotFound(err) {
		t.Errorf("predicates wrong for %v", err)
	}
	if !errors.Is(err, &EngineError{Class: ErrorClassProbeRisk}) {
		t.Error("errors.Is should match by class")
	}
	if got := err.Error(); got != "outer: [probe_risk] candidate (patch=hook)" {
		t.Errorf("Error() = %q", got)
	}
	if !IsUnreachable(objmodel.ErrUnreachable) || !IsTypeMismatch(objmodel.ErrTypeMismatch) {
		t.Error("sentinel predicates failed")
	}
}

func TestErrorLogOncePerClass(t *testing.T) {
	obs := newRecordingObserver()
	l := newErrorLog(zerolog.Nop(), obs)

	for i := 0; i < 3; i++ {
		l.Record(objmodel.ErrNotFound, "lookup failed")
	}
	l.Record(objmodel.ErrUnreachable, "gone")

	if !l.seen[ErrorClassNotFound] || !l.seen[ErrorClassUnreachable] {
		t.Errorf("seen = %v", l.seen)
	}
	if obs.errors["not_found"] != 3 || obs.errors["unreachable"] != 1 {
		t.Errorf("observer counts = %v", obs.errors)
	}
}
