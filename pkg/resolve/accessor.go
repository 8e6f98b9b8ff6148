package resolve

import (
	"errors"
	"fmt"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// ErrHostPanic wraps a panic raised by a host object during access.
var ErrHostPanic = errors.New("host panicked during access")

// Accessor is a bound read/write handle to one numeric attribute of a live object.
type Accessor struct {
	obj  objmodel.Object
	name string
}

// NewAccessor binds name on obj without checking that it resolves.
func NewAccessor(obj objmodel.Object, name string) *Accessor {
	return &Accessor{obj: obj, name: name}
}

// Name returns the attribute name the accessor is bound to.
func (a *Accessor) Name() string {
	return a.name
}

// Object returns the object the accessor reads from.
func (a *Accessor) Object() objmodel.Object {
	return a.obj
}

// Read returns the current value. False means Absent: the value is no longer
// numeric, the member vanished or the object was destroyed.
func (a *Accessor) Read() (float64, bool) {
	v, err := a.read()
	return v, err == nil
}

// Write stores v. It reports false when the attribute is non-numeric,
// read-only or the object is gone.
func (a *Accessor) Write(v float64) bool {
	return a.write(v) == nil
}

// Add reads the value, adds delta and writes the sum back. It succeeds only
// when both the read and the write succeed, and returns the written value.
func (a *Accessor) Add(delta float64) (float64, bool) {
	cur, err := a.read()
	if err != nil {
		return 0, false
	}
	next := cur + delta
	if err := a.write(next); err != nil {
		return 0, false
	}
	return next, true
}

func (a *Accessor) read() (v float64, err error) {
	if a == nil || a.obj == nil {
		return 0, objmodel.ErrUnreachable
	}
	err = guard(func() error {
		var inner error
		v, inner = a.obj.Number(a.name)
		return inner
	})
	return v, err
}

func (a *Accessor) write(v float64) error {
	if a == nil || a.obj == nil {
		return objmodel.ErrUnreachable
	}
	return guard(func() error {
		return a.obj.SetNumber(a.name, v)
	})
}

// guard runs fn and converts a host panic into ErrHostPanic.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHostPanic, r)
		}
	}()
	return fn()
}
