package objmodel

// Object is a live host object addressed by attribute name.
type Object interface {
	// TypeName returns the fully qualified type name of the object.
	TypeName() string

	// Number reads a numeric attribute.
	Number(name string) (float64, error)

	// SetNumber writes a numeric attribute, converting to the attribute's storage kind.
	SetNumber(name string, v float64) error

	// Ref follows a reference attribute to another object.
	Ref(name string) (Object, error)
}

// Liveness is implemented by objects that can be destroyed by the host.
type Liveness interface {
	Alive() bool
}

// Unwrapper is implemented by objects that wrap a native host value.
// Typed capabilities such as an inventory receiver are discovered by
// asserting on the unwrapped value.
type Unwrapper interface {
	Unwrap() interface{}
}

// IsAlive reports whether obj is non-nil and, if it tracks liveness, still alive.
func IsAlive(obj Object) bool {
	if obj == nil {
		return false
	}
	if l, ok := obj.(Liveness); ok {
		return l.Alive()
	}
	return true
}

// Native returns the value wrapped by obj, or obj itself when it wraps nothing.
func Native(obj Object) interface{} {
	if u, ok := obj.(Unwrapper); ok {
		if v := u.Unwrap(); v != nil {
			return v
		}
	}
	return obj
}
