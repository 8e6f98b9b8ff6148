package resolve

import (
	"errors"
	"reflect"
	"testing"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// spyObject records every member it is asked about.
type spyObject struct {
	*objmodel.Table
	touched []string
}

func newSpy(typeName string) *spyObject {
	return &spyObject{Table: objmodel.NewTable(typeName)}
}

func (s *spyObject) Number(name string) (float64, error) {
	s.touched = append(s.touched, name)
	return s.Table.Number(name)
}

func (s *spyObject) Ref(name string) (objmodel.Object, error) {
	s.touched = append(s.touched, name)
	return s.Table.Ref(name)
}

// panicObject panics on every access.
type panicObject struct{}

func (panicObject) TypeName() string                    { return "Broken" }
func (panicObject) Number(string) (float64, error)      { panic("boom") }
func (panicObject) SetNumber(string, float64) error     { panic("boom") }
func (panicObject) Ref(string) (objmodel.Object, error) { panic("boom") }

func TestResolveFirstMatchWins(t *testing.T) {
	obj := objmodel.NewTable("Health").
		Set("current", "n/a").
		Set("Value", 50).
		Set("HP", 70)

	acc, err := Resolve(obj, []string{"Current", "current", "Value", "value", "HP", "hp"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if acc.Name() != "Value" {
		t.Errorf("Resolve() bound %q, want Value", acc.Name())
	}
	if v, ok := acc.Read(); !ok || v != 50 {
		t.Errorf("Read() = %v, %v, want 50, true", v, ok)
	}
}

func TestResolveNotFound(t *testing.T) {
	obj := objmodel.NewTable("Health").Set("Label", "x")

	_, err := Resolve(obj, []string{"Label", "Max"})
	if !errors.Is(err, objmodel.ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, objmodel.ErrTypeMismatch) {
		t.Errorf("Resolve() error should carry the type mismatch cause, got %v", err)
	}
	if _, err := Resolve(nil, []string{"Max"}); !errors.Is(err, objmodel.ErrNotFound) {
		t.Errorf("Resolve(nil) error = %v, want ErrNotFound", err)
	}
}

func TestAccessorAbsentAfterDestroy(t *testing.T) {
	obj := objmodel.NewTable("Health").Set("Max", 100.0)
	acc, err := Resolve(obj, []string{"Max"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	obj.Destroy()
	if _, ok := acc.Read(); ok {
		t.Error("Read() on destroyed object should be Absent")
	}
	if acc.Write(1) {
		t.Error("Write() on destroyed object should fail")
	}
	if _, ok := acc.Add(1); ok {
		t.Error("Add() on destroyed object should fail")
	}
}

func TestAccessorRecoversPanics(t *testing.T) {
	acc := NewAccessor(panicObject{}, "Max")
	if _, ok := acc.Read(); ok {
		t.Error("Read() should report Absent when the host panics")
	}
	if acc.Write(3) {
		t.Error("Write() should fail when the host panics")
	}
	if _, err := ResolveChain(panicObject{}, []string{"Stats", "Max"}); !errors.Is(err, ErrHostPanic) {
		t.Errorf("ResolveChain() error = %v, want ErrHostPanic", err)
	}
}

func TestAddFirstSkipsReadOnly(t *testing.T) {
	obj := objmodel.NewTable("Player").
		Set("MaxHealth", 100.0).
		ReadOnly("MaxHealth").
		Set("maxHealth", 100.0)

	acc, got, err := AddFirst(obj, []string{"MaxHealth", "maxHealth"}, 40)
	if err != nil {
		t.Fatalf("AddFirst() error: %v", err)
	}
	if acc.Name() != "maxHealth" || got != 140 {
		t.Errorf("AddFirst() = %q, %v, want maxHealth, 140", acc.Name(), got)
	}
	if v, _ := obj.Number("MaxHealth"); v != 100 {
		t.Errorf("read-only MaxHealth changed to %v", v)
	}
}

func TestSetFirst(t *testing.T) {
	obj := objmodel.NewTable("Health").Set("Current", 80)
	if _, err := SetFirst(obj, []string{"current", "Current"}, 120); err != nil {
		t.Fatalf("SetFirst() error: %v", err)
	}
	if v, _ := ReadFirst(obj, []string{"Current"}); v != 120 {
		t.Errorf("Current = %v, want 120", v)
	}
}

func TestResolveChain(t *testing.T) {
	health := objmodel.NewTable("Health").Set("Max", 100.0)
	stats := objmodel.NewTable("Stats").Link("Health", health)
	player := objmodel.NewTable("Player").Link("Stats", stats)

	acc, got, err := AddChain(player, []string{"Stats", "Health", "Max"}, 40)
	if err != nil {
		t.Fatalf("AddChain() error: %v", err)
	}
	if got != 140 || acc.Object() != health {
		t.Errorf("AddChain() = %v on %v, want 140 on health", got, acc.Object().TypeName())
	}
}

func TestResolveChainStopsAtNullHop(t *testing.T) {
	player := newSpy("Player")
	player.Link("Stats", nil)

	_, err := ResolveChain(player, []string{"Stats", "Health", "Max"})
	if !errors.Is(err, objmodel.ErrNotFound) || !errors.Is(err, objmodel.ErrNull) {
		t.Fatalf("ResolveChain() error = %v, want NotFound wrapping ErrNull", err)
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) || chainErr.Hop != 0 {
		t.Fatalf("ResolveChain() should stop at hop 0, got %v", err)
	}
	if !reflect.DeepEqual(player.touched, []string{"Stats"}) {
		t.Errorf("touched %v, want only [Stats]", player.touched)
	}
}

func TestParseChain(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Stats.Health.Max", []string{"Stats", "Health", "Max"}},
		{" Armor . Head . Rating ", []string{"Armor", "Head", "Rating"}},
		{"Max", []string{"Max"}},
		{"", nil},
		{"Stats..Max", nil},
	}
	for _, tt := range tests {
		if got := ParseChain(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseChain(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
