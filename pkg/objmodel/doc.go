// Package objmodel defines the capability surface the patch engine uses to talk
// to a live host object graph whose concrete layout is unknown at build time.
//
// # Objects
//
// An Object exposes named numeric attributes and named references to other
// objects. The engine never inspects concrete host types; it only asks an
// Object for a number, writes a number back, or follows a reference:
//
//	type Object interface {
//	    TypeName() string
//	    Number(name string) (float64, error)
//	    SetNumber(name string, v float64) error
//	    Ref(name string) (Object, error)
//	}
//
// Three adapters are provided:
//
//   - Reflect: wraps a Go struct pointer using the reflect package
//   - Table: a property-table object keyed by attribute name
//   - World: an in-memory Host holding type metadata, live instances and scene objects
//
// # Failure kinds
//
// Every failure is reported as one of a small set of sentinel errors so callers
// can recover locally with errors.Is:
//
//   - ErrNotFound: the named member does not exist
//   - ErrTypeMismatch: the member exists but is not numeric-convertible
//   - ErrReadOnly: the member rejects writes
//   - ErrUnreachable: the object has been destroyed by the host
//   - ErrNull: a reference member currently holds nothing
//
// # Host enumeration
//
// A Host lists loaded modules with their type metadata, enumerates live
// instances of a type and exposes scene objects addressed by tag or name. The
// diagnostic scanner and the event probe only ever read this metadata.
package objmodel
