package inventory

import (
	"fmt"
	"sync"
)

// MemoryCatalog is an in-process Catalog.
type MemoryCatalog struct {
	mu     sync.RWMutex
	items  map[string]*Item
	nextID int
}

// NewMemoryCatalog creates an empty catalog. IDs start at firstID.
func NewMemoryCatalog(firstID int) *MemoryCatalog {
	return &MemoryCatalog{
		items:  make(map[string]*Item),
		nextID: firstID,
	}
}

// AddDynamicEntry registers item and assigns its ID.
func (c *MemoryCatalog) AddDynamicEntry(item *Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[item.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, item.Name)
	}
	item.ID = c.nextID
	c.nextID++
	c.items[item.Name] = item
	return nil
}

// Get returns the registered item with the given name.
func (c *MemoryCatalog) Get(name string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[name]
	return item, ok
}

// Bag is a slot-limited Receiver. Items stack up to their stack limit.
type Bag struct {
	mu      sync.Mutex
	catalog *MemoryCatalog
	slots   int
	stacks  []stack
}

type stack struct {
	item *Item
	qty  int
}

// NewBag creates a bag with the given number of slots. When catalog is set,
// only registered items are accepted.
func NewBag(slots int, catalog *MemoryCatalog) *Bag {
	return &Bag{slots: slots, catalog: catalog}
}

// ReceiveItem adds qty units of item. It fills existing stacks first and
// declines without change when the remainder does not fit.
func (b *Bag) ReceiveItem(item *Item, qty int) (bool, error) {
	if item == nil || qty <= 0 {
		return false, fmt.Errorf("invalid grant of %d units", qty)
	}
	if b.catalog != nil {
		if _, ok := b.catalog.Get(item.Name); !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownItem, item.Name)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	limit := item.StackLimit
	if limit < 1 {
		limit = 1
	}

	room := 0
	for _, s := range b.stacks {
		if s.item.Name == item.Name {
			room += limit - s.qty
		}
	}
	room += (b.slots - len(b.stacks)) * limit
	if room < qty {
		return false, nil
	}

	left := qty
	for i := range b.stacks {
		if left == 0 {
			break
		}
		s := &b.stacks[i]
		if s.item.Name != item.Name {
			continue
		}
		n := min(limit-s.qty, left)
		s.qty += n
		left -= n
	}
	for left > 0 {
		n := min(limit, left)
		b.stacks = append(b.stacks, stack{item: item, qty: n})
		left -= n
	}
	return true, nil
}

// Count returns how many units of the named item the bag holds.
func (b *Bag) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, s := range b.stacks {
		if s.item.Name == name {
			total += s.qty
		}
	}
	return total
}

// Used returns the number of occupied slots.
func (b *Bag) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stacks)
}
