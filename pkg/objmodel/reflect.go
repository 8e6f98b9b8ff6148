package objmodel

import (
	"fmt"
	"reflect"
)

// TypeNamer lets a native value report its host type name to Reflect.
type TypeNamer interface {
	TypeName() string
}

// reflectObject adapts a pointer to a Go struct. Exported fields are
// attributes; zero-argument methods returning one value act as read-only
// properties, made writable by a matching Set<Name> method.
type reflectObject struct {
	ptr    reflect.Value
	native interface{}
}

// Reflect wraps v as an Object. v must be a non-nil pointer to a struct, or a
// value that already implements Object. Any other value yields nil.
func Reflect(v interface{}) Object {
	if v == nil {
		return nil
	}
	if obj, ok := v.(Object); ok {
		return obj
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil
	}
	return &reflectObject{ptr: rv, native: v}
}

// TypeName returns the package-qualified struct name unless the value names itself.
func (o *reflectObject) TypeName() string {
	if n, ok := o.native.(TypeNamer); ok {
		return n.TypeName()
	}
	t := o.ptr.Elem().Type()
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// Alive delegates to the wrapped value when it tracks liveness.
func (o *reflectObject) Alive() bool {
	if l, ok := o.native.(Liveness); ok {
		return l.Alive()
	}
	return true
}

// Unwrap returns the wrapped struct pointer.
func (o *reflectObject) Unwrap() interface{} {
	return o.native
}

func (o *reflectObject) Number(name string) (float64, error) {
	if !o.Alive() {
		return 0, ErrUnreachable
	}
	v, err := o.member(name)
	if err != nil {
		return 0, err
	}
	f, err := valueToFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", o.TypeName(), name, err)
	}
	return f, nil
}

func (o *reflectObject) SetNumber(name string, value float64) error {
	if !o.Alive() {
		return ErrUnreachable
	}

	if field, ok := o.field(name); ok {
		if !isNumericKind(field.Kind()) {
			return fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrTypeMismatch)
		}
		if !field.CanSet() {
			return fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrReadOnly)
		}
		converted, err := fromFloat(value, field.Type())
		if err != nil {
			return err
		}
		field.Set(converted)
		return nil
	}

	if setter := o.ptr.MethodByName("Set" + name); setter.IsValid() {
		mt := setter.Type()
		if mt.NumIn() != 1 || !isNumericKind(mt.In(0).Kind()) {
			return fmt.Errorf("%s.Set%s: %w", o.TypeName(), name, ErrTypeMismatch)
		}
		converted, err := fromFloat(value, mt.In(0))
		if err != nil {
			return err
		}
		out := setter.Call([]reflect.Value{converted})
		if len(out) > 0 {
			if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
				return err
			}
		}
		return nil
	}

	if _, ok := o.getter(name); ok {
		return fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrReadOnly)
	}
	return fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrNotFound)
}

func (o *reflectObject) Ref(name string) (Object, error) {
	if !o.Alive() {
		return nil, ErrUnreachable
	}
	v, err := o.member(name)
	if err != nil {
		return nil, err
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil, fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrNull)
		}
	case reflect.Struct:
		if !v.CanAddr() {
			return nil, fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrTypeMismatch)
		}
		v = v.Addr()
	}

	target := Reflect(v.Interface())
	if target == nil {
		return nil, fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrTypeMismatch)
	}
	return target, nil
}

// member reads an exported field or a zero-argument getter method.
func (o *reflectObject) member(name string) (reflect.Value, error) {
	if field, ok := o.field(name); ok {
		return field, nil
	}
	if getter, ok := o.getter(name); ok {
		return getter.Call(nil)[0], nil
	}
	return reflect.Value{}, fmt.Errorf("%s.%s: %w", o.TypeName(), name, ErrNotFound)
}

func (o *reflectObject) field(name string) (reflect.Value, bool) {
	sf, ok := o.ptr.Elem().Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, false
	}
	field, err := o.ptr.Elem().FieldByIndexErr(sf.Index)
	if err != nil {
		return reflect.Value{}, false
	}
	return field, true
}

func (o *reflectObject) getter(name string) (reflect.Value, bool) {
	m := o.ptr.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	if m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return reflect.Value{}, false
	}
	return m, true
}
