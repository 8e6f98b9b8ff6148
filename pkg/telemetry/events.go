package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/stattweaks/pkg/engine"
)

// Event levels, ordered by severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// ErrPublisherStopped is returned by Publish after Shutdown.
var ErrPublisherStopped = errors.New("event publisher stopped")

// ErrBufferFull is returned when an async publisher cannot queue an event.
var ErrBufferFull = errors.New("event buffer full, event dropped")

// Event is a runtime event tagged with the run it belongs to.
type Event struct {
	engine.Event

	// RunID is taken from the publishing context.
	RunID string `json:"run_id,omitempty"`
}

// EventSubscriber handles one event.
type EventSubscriber func(ctx context.Context, event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans runtime events out to subscribers. It implements
// engine.EventPublisher. Delivery order matches publish order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan queued
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     chan struct{}
	stopOnce    sync.Once
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

type queued struct {
	ctx   context.Context
	event Event
}

// runIDKey carries the run id that Publish stamps onto events.
type runIDKey struct{}

// WithRunID tags ctx so events published under it carry runID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{
		config:  cfg,
		stopped: make(chan struct{}),
	}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan queued, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish delivers event to every matching subscriber.
func (ep *EventPublisher) Publish(ctx context.Context, event *engine.Event) error {
	if !ep.config.Enabled || event == nil {
		return nil
	}

	select {
	case <-ep.stopped:
		return ErrPublisherStopped
	default:
	}

	e := Event{Event: *event, RunID: RunIDFromContext(ctx)}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Level == "" {
		e.Level = e.Type.Severity()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(e) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.buffer != nil {
		select {
		case ep.buffer <- queued{ctx: context.WithoutCancel(ctx), event: e}:
			return nil
		default:
			return ErrBufferFull
		}
	}

	ep.deliverEvent(ctx, e)
	return nil
}

// Subscribe adds a subscriber. A nil filter matches every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents drains the buffer until Shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case q := <-ep.buffer:
			ep.deliverEvent(q.ctx, q.event)
		case <-ep.stopped:
			// Deliver what is already queued.
			for {
				select {
				case q := <-ep.buffer:
					ep.deliverEvent(q.ctx, q.event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(ctx context.Context, event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(ctx, event)
	}
}

// Shutdown stops the publisher after queued events are delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.stopOnce.Do(func() { close(ep.stopped) })

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

var eventLevels = map[string]int{
	EventLevelInfo:    0,
	EventLevelWarning: 1,
	EventLevelError:   2,
}

// IsEventLevel reports whether level names a known event level.
func IsEventLevel(level string) bool {
	_, ok := eventLevels[level]
	return ok
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	minLevelValue := eventLevels[minLevel]

	return func(event Event) bool {
		return eventLevels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...engine.EventType) EventFilter {
	typeSet := make(map[engine.EventType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByPatch creates a filter for events about one patch.
func FilterByPatch(patchID string) EventFilter {
	return func(event Event) bool {
		return event.PatchID == patchID
	}
}

// MatchAll combines filters so an event must pass every one. It returns nil,
// which matches everything, when no filters are given.
func MatchAll(filters ...EventFilter) EventFilter {
	if len(filters) == 0 {
		return nil
	}
	return func(event Event) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

var _ engine.EventPublisher = (*EventPublisher)(nil)
