package resolve

import (
	"fmt"
	"strings"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// ChainError reports the hop at which a chain stopped resolving.
type ChainError struct {
	Chain []string
	Hop   int
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain %s stopped at %q: %v", strings.Join(e.Chain, "."), e.Chain[e.Hop], e.Err)
}

func (e *ChainError) Unwrap() []error {
	return []error{objmodel.ErrNotFound, e.Err}
}

// ParseChain splits a dotted chain such as "Stats.Health.Max". It returns nil
// when any segment is empty.
func ParseChain(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	hops := strings.Split(s, ".")
	for i, hop := range hops {
		hops[i] = strings.TrimSpace(hop)
		if hops[i] == "" {
			return nil
		}
	}
	return hops
}

// ResolveChain follows every hop but the last as a reference and resolves the
// final hop as a numeric attribute. It stops at the first null or
// unresolvable hop; later hops are never touched.
func ResolveChain(obj objmodel.Object, hops []string) (*Accessor, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("empty chain: %w", objmodel.ErrNotFound)
	}
	if obj == nil {
		return nil, &ChainError{Chain: hops, Hop: 0, Err: objmodel.ErrNull}
	}

	cur := obj
	for i, hop := range hops[:len(hops)-1] {
		var next objmodel.Object
		err := guard(func() error {
			var inner error
			next, inner = cur.Ref(hop)
			return inner
		})
		if err == nil && next == nil {
			err = objmodel.ErrNull
		}
		if err != nil {
			return nil, &ChainError{Chain: hops, Hop: i, Err: err}
		}
		cur = next
	}

	leaf := hops[len(hops)-1]
	acc, err := Resolve(cur, []string{leaf})
	if err != nil {
		return nil, &ChainError{Chain: hops, Hop: len(hops) - 1, Err: err}
	}
	return acc, nil
}

// AddChain resolves the chain and adds delta to its leaf attribute.
func AddChain(obj objmodel.Object, hops []string, delta float64) (*Accessor, float64, error) {
	acc, err := ResolveChain(obj, hops)
	if err != nil {
		return nil, 0, err
	}
	cur, err := acc.read()
	if err == nil {
		next := cur + delta
		if err = acc.write(next); err == nil {
			return acc, next, nil
		}
	}
	return nil, 0, &ChainError{Chain: hops, Hop: len(hops) - 1, Err: err}
}
