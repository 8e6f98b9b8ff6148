package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// Default grant schedule.
const (
	DefaultMaxAttempts = 10
	DefaultInterval    = time.Second
)

// ErrNoReceiver is returned when none of the inventory references lead to a Receiver.
var ErrNoReceiver = errors.New("no inventory receiver found")

// Locator finds the entity that owns the inventory.
type Locator interface {
	Locate(ctx context.Context, name string) (locate.Match, error)
}

// Options configures a Granter.
type Options struct {
	// Entity is the located owner of the inventory, e.g. "player".
	Entity string

	// InventoryRefs are reference names tried in order on the entity.
	InventoryRefs []string

	Item        Item
	MaxAttempts int
	Interval    time.Duration
}

// State is the lifecycle of a grant.
type State string

const (
	StatePending State = "pending"
	StateGranted State = "granted"
	StateFailed  State = "failed"
)

// Granter registers the buff item and grants one unit to the player.
// Tick is driven from the host loop.
type Granter struct {
	opts      Options
	catalog   Catalog
	locator   Locator
	publisher engine.EventPublisher
	logger    zerolog.Logger

	item        *Item
	registered  bool
	state       State
	attempts    int
	nextAttempt time.Time
	lastErr     error
}

// NewGranter creates a granter. publisher may be nil.
func NewGranter(opts Options, catalog Catalog, locator Locator, publisher engine.EventPublisher, logger zerolog.Logger) *Granter {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	item := opts.Item
	return &Granter{
		opts:      opts,
		catalog:   catalog,
		locator:   locator,
		publisher: publisher,
		logger:    logger.With().Str("component", "inventory.granter").Logger(),
		item:      &item,
		state:     StatePending,
	}
}

// Register adds the item definition to the catalog. Later calls are no-ops.
func (g *Granter) Register() error {
	if g.registered {
		return nil
	}
	if err := g.catalog.AddDynamicEntry(g.item); err != nil && !errors.Is(err, ErrDuplicateItem) {
		return fmt.Errorf("register item %s: %w", g.item.Name, err)
	}
	g.registered = true
	g.logger.Info().
		Str("item", g.item.Name).
		Int("item_id", g.item.ID).
		Int("modifiers", len(g.item.Modifiers)).
		Msg("Item registered")
	return nil
}

// Tick attempts the grant when an attempt is due. It returns true once the
// grant has either succeeded or given up.
func (g *Granter) Tick(ctx context.Context, now time.Time) bool {
	if g.state != StatePending {
		return true
	}
	if !g.registered {
		if err := g.Register(); err != nil {
			g.fail(ctx, now, err)
			return true
		}
	}
	if !g.nextAttempt.IsZero() && now.Before(g.nextAttempt) {
		return false
	}

	g.attempts++
	g.nextAttempt = now.Add(g.opts.Interval)

	err := g.grant(ctx)
	if err == nil {
		g.state = StateGranted
		g.logger.Info().Str("item", g.item.Name).Int("attempts", g.attempts).Msg("Item granted")
		g.publish(ctx, now, engine.EventTypeItemGranted, "item granted", nil)
		return true
	}

	g.lastErr = err
	g.logger.Debug().Err(err).Int("attempt", g.attempts).Msg("Item grant attempt failed")
	if g.attempts >= g.opts.MaxAttempts {
		g.fail(ctx, now, err)
		return true
	}
	return false
}

func (g *Granter) grant(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("grant panicked: %v", r)
		}
	}()

	match, err := g.locator.Locate(ctx, g.opts.Entity)
	if err != nil {
		return err
	}
	receiver, via, err := FindReceiver(match.Object, g.opts.InventoryRefs)
	if err != nil {
		return err
	}
	ok, err := receiver.ReceiveItem(g.item, 1)
	if err != nil {
		return fmt.Errorf("receive via %s: %w", via, err)
	}
	if !ok {
		return fmt.Errorf("inventory %s declined the item", via)
	}
	return nil
}

func (g *Granter) fail(ctx context.Context, now time.Time, err error) {
	g.state = StateFailed
	g.lastErr = err
	g.logger.Warn().Err(err).Str("item", g.item.Name).Int("attempts", g.attempts).Msg("Item grant failed")
	g.publish(ctx, now, engine.EventTypeItemGrantFailed, err.Error(), map[string]interface{}{"attempts": g.attempts})
}

func (g *Granter) publish(ctx context.Context, now time.Time, eventType engine.EventType, msg string, details map[string]interface{}) {
	if g.publisher == nil {
		return
	}
	event := &engine.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: now,
		Message:   msg,
		Value:     float64(g.attempts),
		Details:   details,
		Level:     eventType.Severity(),
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Debug().Err(err).Msg("Failed to publish event")
	}
}

// State returns the grant state.
func (g *Granter) State() State {
	return g.state
}

// Attempts returns the number of grant attempts made.
func (g *Granter) Attempts() int {
	return g.attempts
}

// Err returns the last grant error.
func (g *Granter) Err() error {
	return g.lastErr
}

// Item returns the registered item definition.
func (g *Granter) Item() *Item {
	return g.item
}

// FindReceiver follows the first reference in refs that leads to a Receiver.
// The object itself is accepted when it is a Receiver.
func FindReceiver(owner objmodel.Object, refs []string) (Receiver, string, error) {
	if r, ok := asReceiver(owner); ok {
		return r, "self", nil
	}
	var errs []error
	for _, name := range refs {
		target, err := owner.Ref(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if r, ok := asReceiver(target); ok {
			return r, name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, objmodel.ErrTypeMismatch))
	}
	if len(errs) == 0 {
		return nil, "", ErrNoReceiver
	}
	return nil, "", fmt.Errorf("%w: %w", ErrNoReceiver, errors.Join(errs...))
}

func asReceiver(obj objmodel.Object) (Receiver, bool) {
	if obj == nil || !objmodel.IsAlive(obj) {
		return nil, false
	}
	if r, ok := obj.(Receiver); ok {
		return r, true
	}
	r, ok := objmodel.Native(obj).(Receiver)
	return r, ok
}
