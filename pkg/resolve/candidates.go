package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// LookupError reports that no candidate resolved. It unwraps to
// objmodel.ErrNotFound and to every per-candidate cause, so callers can still
// see type mismatches or unreachable objects with errors.Is.
type LookupError struct {
	TypeName   string
	Candidates []string
	Causes     []error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no numeric attribute among [%s] on %s", strings.Join(e.Candidates, ", "), e.TypeName)
}

func (e *LookupError) Unwrap() []error {
	return append([]error{objmodel.ErrNotFound}, e.Causes...)
}

// Resolve returns an accessor for the first candidate whose value reads as a
// number. Missing and non-numeric candidates are skipped.
func Resolve(obj objmodel.Object, candidates []string) (*Accessor, error) {
	if obj == nil {
		return nil, fmt.Errorf("resolve on nil object: %w", objmodel.ErrNotFound)
	}

	lookupErr := &LookupError{TypeName: typeName(obj), Candidates: candidates}
	for _, name := range candidates {
		acc := NewAccessor(obj, name)
		if _, err := acc.read(); err != nil {
			lookupErr.Causes = append(lookupErr.Causes, err)
			if errors.Is(err, objmodel.ErrUnreachable) {
				break
			}
			continue
		}
		return acc, nil
	}
	return nil, lookupErr
}

// ReadFirst resolves candidates and reads the winning attribute.
func ReadFirst(obj objmodel.Object, candidates []string) (float64, error) {
	acc, err := Resolve(obj, candidates)
	if err != nil {
		return 0, err
	}
	v, err := acc.read()
	if err != nil {
		return 0, err
	}
	return v, nil
}

// AddFirst adds delta to the first candidate that accepts both the read and
// the write. A candidate that reads but refuses the write does not stop the
// search. It returns the accessor used and the written value.
func AddFirst(obj objmodel.Object, candidates []string, delta float64) (*Accessor, float64, error) {
	if obj == nil {
		return nil, 0, fmt.Errorf("add on nil object: %w", objmodel.ErrNotFound)
	}

	lookupErr := &LookupError{TypeName: typeName(obj), Candidates: candidates}
	for _, name := range candidates {
		acc := NewAccessor(obj, name)
		cur, err := acc.read()
		if err == nil {
			next := cur + delta
			if err = acc.write(next); err == nil {
				return acc, next, nil
			}
		}
		lookupErr.Causes = append(lookupErr.Causes, err)
		if errors.Is(err, objmodel.ErrUnreachable) {
			break
		}
	}
	return nil, 0, lookupErr
}

// SetFirst writes v to the first candidate that reads as a number and accepts the write.
func SetFirst(obj objmodel.Object, candidates []string, v float64) (*Accessor, error) {
	if obj == nil {
		return nil, fmt.Errorf("set on nil object: %w", objmodel.ErrNotFound)
	}

	lookupErr := &LookupError{TypeName: typeName(obj), Candidates: candidates}
	for _, name := range candidates {
		acc := NewAccessor(obj, name)
		_, err := acc.read()
		if err == nil {
			if err = acc.write(v); err == nil {
				return acc, nil
			}
		}
		lookupErr.Causes = append(lookupErr.Causes, err)
		if errors.Is(err, objmodel.ErrUnreachable) {
			break
		}
	}
	return nil, lookupErr
}

func typeName(obj objmodel.Object) (name string) {
	defer func() {
		if recover() != nil {
			name = "<unknown>"
		}
	}()
	return obj.TypeName()
}
