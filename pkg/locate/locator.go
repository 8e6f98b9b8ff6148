package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// ErrUnknownEntity is returned when Locate is asked for an entity that was never defined.
var ErrUnknownEntity = errors.New("unknown entity")

// Strategy names the lookup step that produced a match.
type Strategy string

const (
	StrategyRegistry  Strategy = "registry"
	StrategyInstances Strategy = "instances"
	StrategyScene     Strategy = "scene"
	StrategySceneScan Strategy = "scene_scan"
)

// Entity describes one conceptual object to locate.
type Entity struct {
	// Name is the role, e.g. "player" or "health".
	Name string `json:"name" validate:"required"`

	// Types lists declared type names in priority order. Fully qualified
	// names match exactly; any entry also matches as a case-insensitive
	// substring when no exact match exists.
	Types []string `json:"types" validate:"required,min=1,dive,required"`

	// Tags and SceneNames address the scene object carrying the entity.
	Tags       []string `json:"tags,omitempty"`
	SceneNames []string `json:"scene_names,omitempty"`
}

// Match is a located object.
type Match struct {
	Object   objmodel.Object
	Entity   string
	Type     string
	Strategy Strategy

	// Cached is true when the match came from the cache.
	Cached bool

	// Relocated is true when a cached object was found unreachable and
	// replaced by a fresh lookup.
	Relocated bool
}

// Locator finds entities in a host. It is not safe for concurrent use.
type Locator struct {
	host     objmodel.Host
	registry *Registry
	entities map[string]Entity
	cache    map[string]Match
	logger   zerolog.Logger
}

// New creates a locator over host. registry may be nil.
func New(host objmodel.Host, registry *Registry, logger zerolog.Logger, entities ...Entity) *Locator {
	l := &Locator{
		host:     host,
		registry: registry,
		entities: make(map[string]Entity),
		cache:    make(map[string]Match),
		logger:   logger.With().Str("component", "locate").Logger(),
	}
	for _, e := range entities {
		l.Define(e)
	}
	return l
}

// Define adds or replaces an entity and drops its cached match.
func (l *Locator) Define(e Entity) {
	l.entities[e.Name] = e
	delete(l.cache, e.Name)
}

// Entity returns the definition registered under name.
func (l *Locator) Entity(name string) (Entity, bool) {
	e, ok := l.entities[name]
	return e, ok
}

// Invalidate drops the cached match for name.
func (l *Locator) Invalidate(name string) {
	delete(l.cache, name)
}

// Locate returns the live object for the named entity. Failing every
// strategy yields an error wrapping objmodel.ErrNotFound.
func (l *Locator) Locate(ctx context.Context, name string) (Match, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, err
	}

	entity, ok := l.entities[name]
	if !ok {
		return Match{}, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}

	relocated := false
	if cached, ok := l.cache[name]; ok {
		if objmodel.IsAlive(cached.Object) {
			cached.Cached = true
			return cached, nil
		}
		l.logger.Debug().
			Str("entity", name).
			Str("type", cached.Type).
			Msg("Cached target unreachable, locating again")
		delete(l.cache, name)
		relocated = true
	}

	match, err := l.locate(entity)
	if err != nil {
		return Match{}, err
	}
	match.Relocated = relocated

	l.cache[name] = match
	l.logger.Debug().
		Str("entity", name).
		Str("type", match.Type).
		Str("strategy", string(match.Strategy)).
		Msg("Entity located")
	return match, nil
}

func (l *Locator) locate(e Entity) (Match, error) {
	if l.host == nil {
		return Match{}, fmt.Errorf("entity %s: no host: %w", e.Name, objmodel.ErrNotFound)
	}

	// Registry by role first; it does not need the type to be resolvable.
	if obj, ok := l.registry.Lookup(e.Name); ok {
		return Match{Object: obj, Entity: e.Name, Type: obj.TypeName(), Strategy: StrategyRegistry}, nil
	}

	info, ok := ResolveType(l.host, e.Types)
	if !ok {
		return Match{}, fmt.Errorf("entity %s: no declared type among %v: %w", e.Name, e.Types, objmodel.ErrNotFound)
	}
	found := func(obj objmodel.Object, s Strategy) Match {
		return Match{Object: obj, Entity: e.Name, Type: info.FullName, Strategy: s}
	}

	if obj, ok := l.registry.Lookup(info.FullName); ok {
		return found(obj, StrategyRegistry), nil
	}
	for _, name := range e.Types {
		if obj, ok := l.registry.Lookup(name); ok {
			return found(obj, StrategyRegistry), nil
		}
	}

	for _, obj := range l.host.Instances(info.FullName) {
		if objmodel.IsAlive(obj) {
			return found(obj, StrategyInstances), nil
		}
	}

	for _, so := range l.addressed(e) {
		if comp := so.Component(info.FullName); objmodel.IsAlive(comp) {
			return found(comp, StrategyScene), nil
		}
	}

	for _, so := range l.host.SceneObjects() {
		if comp := so.Component(info.FullName); objmodel.IsAlive(comp) {
			return found(comp, StrategySceneScan), nil
		}
	}

	return Match{}, fmt.Errorf("entity %s: no live %s: %w", e.Name, info.FullName, objmodel.ErrNotFound)
}

// addressed returns the scene objects matching the entity's tags, then names.
func (l *Locator) addressed(e Entity) []objmodel.SceneObject {
	var out []objmodel.SceneObject
	for _, tag := range e.Tags {
		if so := l.host.FindByTag(tag); so != nil {
			out = append(out, so)
		}
	}
	for _, name := range e.SceneNames {
		if so := l.host.FindByName(name); so != nil {
			out = append(out, so)
		}
	}
	return out
}

// ResolveType picks the declared type for a candidate name list. Exact full
// name matches are tried first, in candidate order across all modules. When
// none exists, the first type whose full name contains any candidate
// (case-insensitive) wins, in module load order.
func ResolveType(host objmodel.Host, names []string) (objmodel.TypeInfo, bool) {
	if host == nil || len(names) == 0 {
		return objmodel.TypeInfo{}, false
	}
	modules := host.Modules()

	for _, name := range names {
		for _, m := range modules {
			for _, t := range m.Types {
				if t.FullName == name {
					return t, true
				}
			}
		}
	}

	lowered := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			lowered = append(lowered, strings.ToLower(name))
		}
	}
	for _, m := range modules {
		for _, t := range m.Types {
			full := strings.ToLower(t.FullName)
			for _, name := range lowered {
				if strings.Contains(full, name) {
					return t, true
				}
			}
		}
	}

	return objmodel.TypeInfo{}, false
}
