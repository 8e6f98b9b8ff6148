package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

func totem() Item {
	return Item{
		Name:       "Totem_StatBuff",
		Category:   "Totem",
		Tags:       []string{"Totem", "DontDropOnDeadInSlot"},
		StackLimit: 1,
		Modifiers: []Modifier{
			{Key: "Stat_MaxHealth", Value: 50, Target: ModifierTargetCharacter, Type: ModifierTypeFlat},
		},
	}
}

// fakeLocator returns obj once ready is set.
type fakeLocator struct {
	obj   objmodel.Object
	ready bool
	calls int
}

func (f *fakeLocator) Locate(_ context.Context, name string) (locate.Match, error) {
	f.calls++
	if !f.ready {
		return locate.Match{}, locate.ErrUnknownEntity
	}
	return locate.Match{Object: f.obj}, nil
}

type recordingPublisher struct {
	events []*engine.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e *engine.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestMemoryCatalog(t *testing.T) {
	catalog := NewMemoryCatalog(9000)
	item := totem()
	if err := catalog.AddDynamicEntry(&item); err != nil {
		t.Fatalf("AddDynamicEntry() error: %v", err)
	}
	if item.ID != 9000 {
		t.Errorf("ID = %d, want 9000", item.ID)
	}

	dup := totem()
	if err := catalog.AddDynamicEntry(&dup); !errors.Is(err, ErrDuplicateItem) {
		t.Errorf("duplicate registration error = %v, want ErrDuplicateItem", err)
	}

	bad := Item{Name: "broken"}
	if err := catalog.AddDynamicEntry(&bad); err == nil {
		t.Error("item without stack limit should be rejected")
	}
}

func TestBagStacking(t *testing.T) {
	potion := &Item{Name: "Potion", StackLimit: 5}
	bag := NewBag(2, nil)

	tests := []struct {
		name      string
		qty       int
		wantOK    bool
		wantCount int
		wantUsed  int
	}{
		{"first stack", 3, true, 3, 1},
		{"fills stack then opens a slot", 4, true, 7, 2},
		{"does not fit", 4, false, 7, 2},
		{"fills remaining room", 3, true, 10, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := bag.ReceiveItem(potion, tt.qty)
			if err != nil {
				t.Fatalf("ReceiveItem() error: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("ReceiveItem() = %v, want %v", ok, tt.wantOK)
			}
			if got := bag.Count("Potion"); got != tt.wantCount {
				t.Errorf("Count() = %d, want %d", got, tt.wantCount)
			}
			if got := bag.Used(); got != tt.wantUsed {
				t.Errorf("Used() = %d, want %d", got, tt.wantUsed)
			}
		})
	}
}

func TestBagRejectsUnregistered(t *testing.T) {
	bag := NewBag(4, NewMemoryCatalog(1))
	item := totem()
	if _, err := bag.ReceiveItem(&item, 1); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("error = %v, want ErrUnknownItem", err)
	}
}

func TestFindReceiver(t *testing.T) {
	bag := NewBag(1, nil)
	player := objmodel.NewTable("PlayerController").
		Link("Inventory", nil).
		Link("inventory", objmodel.NewTable("Inventory").Attach(bag))

	r, via, err := FindReceiver(player, []string{"Inventory", "inventory", "PlayerInventory"})
	if err != nil {
		t.Fatalf("FindReceiver() error: %v", err)
	}
	if via != "inventory" || r != Receiver(bag) {
		t.Errorf("FindReceiver() via %q, want inventory", via)
	}

	empty := objmodel.NewTable("PlayerController")
	if _, _, err := FindReceiver(empty, []string{"Inventory"}); !errors.Is(err, ErrNoReceiver) {
		t.Errorf("error = %v, want ErrNoReceiver", err)
	}
	if _, _, err := FindReceiver(empty, nil); !errors.Is(err, ErrNoReceiver) {
		t.Errorf("error with no refs = %v, want ErrNoReceiver", err)
	}
}

func TestGranterSucceedsOnceOwnerAppears(t *testing.T) {
	catalog := NewMemoryCatalog(100)
	bag := NewBag(4, catalog)
	player := objmodel.NewTable("PlayerController").Link("Inventory", objmodel.NewTable("Inventory").Attach(bag))
	locator := &fakeLocator{obj: player}
	pub := &recordingPublisher{}

	g := NewGranter(Options{
		Entity:        "player",
		InventoryRefs: []string{"Inventory"},
		Item:          totem(),
		MaxAttempts:   10,
		Interval:      time.Second,
	}, catalog, locator, pub, zerolog.Nop())

	start := time.Unix(0, 0)
	if g.Tick(context.Background(), start) {
		t.Fatal("grant finished before the player existed")
	}
	// Not due yet.
	g.Tick(context.Background(), start.Add(500*time.Millisecond))
	if g.Attempts() != 1 {
		t.Fatalf("Attempts() = %d, want 1", g.Attempts())
	}

	locator.ready = true
	if !g.Tick(context.Background(), start.Add(time.Second)) {
		t.Fatal("grant did not finish once the player was located")
	}
	if g.State() != StateGranted {
		t.Errorf("State() = %s, want granted", g.State())
	}
	if bag.Count("Totem_StatBuff") != 1 {
		t.Errorf("bag holds %d totems, want 1", bag.Count("Totem_StatBuff"))
	}
	if len(pub.events) != 1 || pub.events[0].Type != engine.EventTypeItemGranted {
		t.Errorf("events = %+v", pub.events)
	}

	// Done grants never retry.
	g.Tick(context.Background(), start.Add(5*time.Second))
	if g.Attempts() != 2 || bag.Count("Totem_StatBuff") != 1 {
		t.Errorf("granter kept working after success")
	}
}

func TestGranterGivesUp(t *testing.T) {
	locator := &fakeLocator{}
	pub := &recordingPublisher{}
	g := NewGranter(Options{
		Entity:        "player",
		InventoryRefs: []string{"Inventory"},
		Item:          totem(),
	}, NewMemoryCatalog(1), locator, pub, zerolog.Nop())

	now := time.Unix(0, 0)
	done := false
	for i := 0; i < 30 && !done; i++ {
		done = g.Tick(context.Background(), now)
		now = now.Add(time.Second)
	}
	if !done || g.State() != StateFailed {
		t.Fatalf("State() = %s, want failed", g.State())
	}
	if g.Attempts() != DefaultMaxAttempts {
		t.Errorf("Attempts() = %d, want %d", g.Attempts(), DefaultMaxAttempts)
	}
	if !errors.Is(g.Err(), locate.ErrUnknownEntity) {
		t.Errorf("Err() = %v", g.Err())
	}
	if len(pub.events) != 1 || pub.events[0].Type != engine.EventTypeItemGrantFailed {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestGranterDeclinedInventory(t *testing.T) {
	catalog := NewMemoryCatalog(1)
	full := NewBag(0, nil)
	player := objmodel.NewTable("PlayerController").Link("Inventory", objmodel.NewTable("Inventory").Attach(full))
	g := NewGranter(Options{
		Entity:        "player",
		InventoryRefs: []string{"Inventory"},
		Item:          totem(),
		MaxAttempts:   2,
	}, catalog, &fakeLocator{obj: player, ready: true}, nil, zerolog.Nop())

	now := time.Unix(0, 0)
	g.Tick(context.Background(), now)
	if !g.Tick(context.Background(), now.Add(time.Second)) {
		t.Fatal("expected the granter to give up after two declines")
	}
	if g.State() != StateFailed {
		t.Errorf("State() = %s, want failed", g.State())
	}
	if _, ok := catalog.Get("Totem_StatBuff"); !ok {
		t.Error("item was not registered")
	}
}
