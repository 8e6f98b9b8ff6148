package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateItem is returned when an item name is already registered.
	ErrDuplicateItem = errors.New("item already registered")

	// ErrUnknownItem is returned when granting an item that was never registered.
	ErrUnknownItem = errors.New("item not registered")
)

// ModifierTarget says what a stat modifier applies to.
type ModifierTarget int

// ModifierTargetCharacter applies the modifier to the carrying character.
const ModifierTargetCharacter ModifierTarget = 2

// ModifierType says how a modifier value combines with the base stat.
type ModifierType int

// ModifierTypeFlat adds the value to the base stat.
const ModifierTypeFlat ModifierType = 0

// Modifier is one stat modifier carried by an item.
type Modifier struct {
	Key    string         `json:"key"`
	Value  float64        `json:"value"`
	Target ModifierTarget `json:"target"`
	Type   ModifierType   `json:"type"`
}

// Item is a dynamically defined item.
type Item struct {
	// ID is assigned by the catalog on registration.
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	StackLimit  int        `json:"stack_limit"`
	Modifiers   []Modifier `json:"modifiers"`
}

// HasTag reports whether the item carries tag.
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks the item definition.
func (i *Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("item name is required")
	}
	if i.StackLimit < 1 {
		return fmt.Errorf("item %s: stack limit must be at least 1", i.Name)
	}
	for _, m := range i.Modifiers {
		if m.Key == "" {
			return fmt.Errorf("item %s: modifier key is required", i.Name)
		}
	}
	return nil
}

// Catalog registers item definitions with the host.
type Catalog interface {
	AddDynamicEntry(item *Item) error
}

// Receiver accepts item instances. The bool reports whether the items were
// taken; false with a nil error means the receiver declined (e.g. full).
type Receiver interface {
	ReceiveItem(item *Item, qty int) (bool, error)
}
