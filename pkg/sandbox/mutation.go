package sandbox

import (
	"fmt"
)

// Mutation is one change a scenario applies to the fixture.
type Mutation struct {
	// Object is the fixture ID of the target object.
	Object string `json:"object,omitempty"`

	// Node is the name of the target scene object.
	Node string `json:"node,omitempty"`

	Attribute string `json:"attribute,omitempty"`

	// Add adjusts a numeric attribute by a delta.
	Add *float64 `json:"add,omitempty"`

	// Set overwrites a numeric attribute.
	Set *float64 `json:"set,omitempty"`

	// Destroy makes the target unreachable.
	Destroy bool `json:"destroy,omitempty"`

	// Spawn registers a dormant target.
	Spawn bool `json:"spawn,omitempty"`
}

func (m Mutation) String() string {
	target := m.Object
	if m.Node != "" {
		target = "scene:" + m.Node
	}
	switch {
	case m.Destroy:
		return "destroy " + target
	case m.Spawn:
		return "spawn " + target
	case m.Add != nil:
		return fmt.Sprintf("%s.%s += %g", target, m.Attribute, *m.Add)
	case m.Set != nil:
		return fmt.Sprintf("%s.%s = %g", target, m.Attribute, *m.Set)
	default:
		return "noop " + target
	}
}

// Validate checks that the mutation names one target and one action.
func (m Mutation) Validate() error {
	if (m.Object == "") == (m.Node == "") {
		return fmt.Errorf("mutation needs exactly one of object or node")
	}
	actions := 0
	for _, set := range []bool{m.Add != nil, m.Set != nil, m.Destroy, m.Spawn} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("mutation %s: needs exactly one of add, set, destroy, spawn", m)
	}
	if (m.Add != nil || m.Set != nil) && (m.Attribute == "" || m.Node != "") {
		return fmt.Errorf("mutation %s: numeric changes need an object attribute", m)
	}
	return nil
}

// Apply performs a mutation on the fixture.
func (fx *Fixture) Apply(m Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if m.Node != "" {
		node, ok := fx.nodes[m.Node]
		if !ok {
			return fmt.Errorf("unknown scene object %q", m.Node)
		}
		if m.Destroy {
			node.Destroy()
			return nil
		}
		key := nodeKey(m.Node)
		if !fx.dormant[key] {
			return fmt.Errorf("scene object %q is already spawned", m.Node)
		}
		delete(fx.dormant, key)
		fx.World.AddSceneObject(node)
		return nil
	}

	tbl, ok := fx.objects[m.Object]
	if !ok {
		return fmt.Errorf("unknown object %q", m.Object)
	}
	switch {
	case m.Destroy:
		tbl.Destroy()
		return nil
	case m.Spawn:
		if !fx.dormant[m.Object] {
			return fmt.Errorf("object %q is already spawned", m.Object)
		}
		delete(fx.dormant, m.Object)
		fx.register(m.Object)
		return nil
	case m.Set != nil:
		return tbl.SetNumber(m.Attribute, *m.Set)
	default:
		cur, err := tbl.Number(m.Attribute)
		if err != nil {
			return err
		}
		return tbl.SetNumber(m.Attribute, cur+*m.Add)
	}
}
