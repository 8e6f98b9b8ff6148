package objmodel

import "errors"

var (
	// ErrNotFound reports that a member, type or object could not be found.
	ErrNotFound = errors.New("not found")

	// ErrTypeMismatch reports that a member holds a value that is not numeric-convertible.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrReadOnly reports that a member exists but rejects writes.
	ErrReadOnly = errors.New("read-only member")

	// ErrUnreachable reports that the object has been destroyed or is otherwise gone.
	ErrUnreachable = errors.New("unreachable object")

	// ErrNull reports that a reference member currently holds no object.
	ErrNull = errors.New("null reference")
)
