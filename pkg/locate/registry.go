package locate

import (
	"sort"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// Registry is the explicit singleton lookup table. Hosts register their
// well-known objects at startup under an entity name or a declared type name.
type Registry struct {
	entries map[string]objmodel.Object
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]objmodel.Object)}
}

// Register stores obj under key, replacing any previous entry.
func (r *Registry) Register(key string, obj objmodel.Object) {
	r.entries[key] = obj
}

// Unregister removes key.
func (r *Registry) Unregister(key string) {
	delete(r.entries, key)
}

// Lookup returns the live object registered under key.
func (r *Registry) Lookup(key string) (objmodel.Object, bool) {
	if r == nil {
		return nil, false
	}
	obj, ok := r.entries[key]
	if !ok || !objmodel.IsAlive(obj) {
		return nil, false
	}
	return obj, true
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
