package objmodel

import (
	"fmt"
	"sort"
)

// Table is a property-table object: attributes and references live in maps
// keyed by name. It models hosts that expose objects as dynamic tables rather
// than typed structs, and is what sandbox worlds are built from.
type Table struct {
	typeName  string
	values    map[string]interface{}
	refs      map[string]Object
	readOnly  map[string]bool
	destroyed bool
	native    interface{}
}

// NewTable creates an empty table object of the given type.
func NewTable(typeName string) *Table {
	return &Table{
		typeName: typeName,
		values:   make(map[string]interface{}),
		refs:     make(map[string]Object),
		readOnly: make(map[string]bool),
	}
}

// Set stores a raw attribute value. Non-numeric values are allowed so that
// type mismatches can be represented.
func (t *Table) Set(name string, value interface{}) *Table {
	t.values[name] = value
	return t
}

// Link stores a reference attribute. A nil target models a null reference.
func (t *Table) Link(name string, target Object) *Table {
	t.refs[name] = target
	return t
}

// ReadOnly marks an attribute as rejecting writes.
func (t *Table) ReadOnly(name string) *Table {
	t.readOnly[name] = true
	return t
}

// Attach records a native value returned by Unwrap.
func (t *Table) Attach(native interface{}) *Table {
	t.native = native
	return t
}

// Destroy marks the object unreachable. Every later access fails with ErrUnreachable.
func (t *Table) Destroy() {
	t.destroyed = true
}

// Alive reports whether the table has not been destroyed.
func (t *Table) Alive() bool {
	return !t.destroyed
}

// Unwrap returns the attached native value, if any.
func (t *Table) Unwrap() interface{} {
	return t.native
}

// TypeName returns the table's declared type name.
func (t *Table) TypeName() string {
	return t.typeName
}

// Get returns the raw attribute value.
func (t *Table) Get(name string) (interface{}, bool) {
	v, ok := t.values[name]
	return v, ok
}

// Names returns the sorted attribute names.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.values))
	for name := range t.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Table) Number(name string) (float64, error) {
	if t.destroyed {
		return 0, ErrUnreachable
	}
	raw, ok := t.values[name]
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", t.typeName, name, ErrNotFound)
	}
	v, err := ToFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", t.typeName, name, err)
	}
	return v, nil
}

func (t *Table) SetNumber(name string, value float64) error {
	if t.destroyed {
		return ErrUnreachable
	}
	raw, ok := t.values[name]
	if !ok {
		return fmt.Errorf("%s.%s: %w", t.typeName, name, ErrNotFound)
	}
	if t.readOnly[name] {
		return fmt.Errorf("%s.%s: %w", t.typeName, name, ErrReadOnly)
	}
	if _, err := ToFloat(raw); err != nil {
		return fmt.Errorf("%s.%s: %w", t.typeName, name, err)
	}
	converted, err := convertLike(value, raw)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", t.typeName, name, err)
	}
	t.values[name] = converted
	return nil
}

func (t *Table) Ref(name string) (Object, error) {
	if t.destroyed {
		return nil, ErrUnreachable
	}
	target, ok := t.refs[name]
	if !ok {
		if _, isValue := t.values[name]; isValue {
			return nil, fmt.Errorf("%s.%s: %w", t.typeName, name, ErrTypeMismatch)
		}
		return nil, fmt.Errorf("%s.%s: %w", t.typeName, name, ErrNotFound)
	}
	if target == nil {
		return nil, fmt.Errorf("%s.%s: %w", t.typeName, name, ErrNull)
	}
	return target, nil
}
