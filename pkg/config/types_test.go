package config

import (
	"testing"
	"time"

	"github.com/openfroyo/stattweaks/pkg/inventory"
)

func TestGranterOptions(t *testing.T) {
	p := DefaultProfile()
	opts := p.Inventory.GranterOptions()

	if opts.Entity != "player" || opts.MaxAttempts != 10 || opts.Interval != time.Second {
		t.Errorf("granter options = %+v", opts)
	}
	if len(opts.InventoryRefs) != 3 || opts.InventoryRefs[0] != "Inventory" {
		t.Errorf("inventory refs = %v", opts.InventoryRefs)
	}

	item := opts.Item
	if err := item.Validate(); err != nil {
		t.Fatalf("stock item invalid: %v", err)
	}
	if item.Name != "Totem_StatBuff" || item.StackLimit != 1 || !item.HasTag("DontDropOnDeadInSlot") {
		t.Errorf("item = %+v", item)
	}
	if len(item.Modifiers) != 3 {
		t.Fatalf("modifiers = %d, want 3", len(item.Modifiers))
	}
	for _, m := range item.Modifiers {
		if m.Target != inventory.ModifierTargetCharacter || m.Type != inventory.ModifierTypeFlat {
			t.Errorf("modifier %s target/type = %d/%d", m.Key, m.Target, m.Type)
		}
	}

	// The conversion copies; editing the result leaves the profile alone.
	opts.InventoryRefs[0] = "changed"
	item.Tags[0] = "changed"
	if p.Inventory.InventoryRefs[0] != "Inventory" || p.Inventory.Item.Tags[0] != "Totem" {
		t.Error("GranterOptions aliased profile slices")
	}
}
