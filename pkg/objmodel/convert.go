package objmodel

import (
	"fmt"
	"math"
	"reflect"
)

// ToFloat converts any integer, unsigned or floating point value to float64.
// Strings, booleans, references and nil are not numeric-convertible.
func ToFloat(v interface{}) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: nil value", ErrTypeMismatch)
	}
	return valueToFloat(reflect.ValueOf(v))
}

func valueToFloat(rv reflect.Value) (float64, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return 0, fmt.Errorf("%w: nil value", ErrTypeMismatch)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	default:
		return 0, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, rv.Type())
	}
}

// isNumericKind reports whether k can hold a number written by SetNumber.
func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// fromFloat converts v to a value of type t. Integral kinds are rounded half
// away from zero and rejected when out of range.
func fromFloat(v float64, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := math.Round(v)
		if math.IsNaN(n) || math.IsInf(n, 0) || out.OverflowInt(int64(n)) {
			return out, fmt.Errorf("%w: %v overflows %s", ErrTypeMismatch, v, t)
		}
		out.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := math.Round(v)
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) || out.OverflowUint(uint64(n)) {
			return out, fmt.Errorf("%w: %v overflows %s", ErrTypeMismatch, v, t)
		}
		out.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		if out.OverflowFloat(v) {
			return out, fmt.Errorf("%w: %v overflows %s", ErrTypeMismatch, v, t)
		}
		out.SetFloat(v)
	default:
		return out, fmt.Errorf("%w: cannot store a number in %s", ErrTypeMismatch, t)
	}

	return out, nil
}

// convertLike converts v to the dynamic type of sample.
func convertLike(v float64, sample interface{}) (interface{}, error) {
	if sample == nil {
		return v, nil
	}
	out, err := fromFloat(v, reflect.TypeOf(sample))
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}
