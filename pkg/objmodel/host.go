package objmodel

// MemberKind classifies a type member for enumeration.
type MemberKind string

const (
	MemberField    MemberKind = "field"
	MemberProperty MemberKind = "property"
	MemberEvent    MemberKind = "event"
	MemberMethod   MemberKind = "method"
)

// Member describes one member of a host type.
type Member struct {
	Name string     `json:"name" yaml:"name"`
	Kind MemberKind `json:"kind" yaml:"kind"`

	// ValueType is the field/property type, the event handler type, or the
	// method return type.
	ValueType string `json:"value_type,omitempty" yaml:"type,omitempty"`

	CanRead  bool     `json:"can_read,omitempty" yaml:"read,omitempty"`
	CanWrite bool     `json:"can_write,omitempty" yaml:"write,omitempty"`
	Static   bool     `json:"static,omitempty" yaml:"static,omitempty"`
	Params   []string `json:"params,omitempty" yaml:"params,omitempty"`
}

// TypeInfo is the enumerable metadata of one host type.
type TypeInfo struct {
	Module    string   `json:"module"`
	Namespace string   `json:"namespace,omitempty"`
	Name      string   `json:"name"`
	FullName  string   `json:"full_name"`
	Members   []Member `json:"members,omitempty"`
}

// Events returns the event members of the type.
func (t TypeInfo) Events() []Member {
	var events []Member
	for _, m := range t.Members {
		if m.Kind == MemberEvent {
			events = append(events, m)
		}
	}
	return events
}

// Module is a loaded unit of host code and the types it declares.
type Module struct {
	Name  string     `json:"name"`
	Types []TypeInfo `json:"types"`
}

// SceneObject is an addressable object in the host scene that carries components.
type SceneObject interface {
	Name() string
	Tag() string

	// Component returns the attached component of the given type, or nil.
	Component(fullName string) Object
}

// Host enumerates the live object graph.
type Host interface {
	// Modules lists loaded modules in load order.
	Modules() []Module

	// Instances returns live instances of the type, oldest first.
	Instances(fullName string) []Object

	// FindByTag returns the first scene object carrying tag, or nil.
	FindByTag(tag string) SceneObject

	// FindByName returns the first scene object with the given name, or nil.
	FindByName(name string) SceneObject

	// SceneObjects returns every live scene object.
	SceneObjects() []SceneObject
}
