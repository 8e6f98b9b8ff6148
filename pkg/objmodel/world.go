package objmodel

// Node is a scene object held by a World.
type Node struct {
	name       string
	tag        string
	components map[string]Object
	destroyed  bool
}

// NewNode creates a scene object with a name and an optional tag.
func NewNode(name, tag string) *Node {
	return &Node{
		name:       name,
		tag:        tag,
		components: make(map[string]Object),
	}
}

// AddComponent attaches obj as the component of type fullName.
func (n *Node) AddComponent(fullName string, obj Object) *Node {
	n.components[fullName] = obj
	return n
}

// Destroy removes the node from the scene.
func (n *Node) Destroy() {
	n.destroyed = true
}

// Alive reports whether the node is still in the scene.
func (n *Node) Alive() bool {
	return !n.destroyed
}

func (n *Node) Name() string { return n.name }

func (n *Node) Tag() string { return n.tag }

// Component returns the live component of type fullName, or nil.
func (n *Node) Component(fullName string) Object {
	if n.destroyed {
		return nil
	}
	obj, ok := n.components[fullName]
	if !ok || !IsAlive(obj) {
		return nil
	}
	return obj
}

// World is an in-memory Host. It is not safe for concurrent use; hosts drive
// it from the same loop that ticks the engine.
type World struct {
	modules   []Module
	instances map[string][]Object
	scene     []*Node
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		instances: make(map[string][]Object),
	}
}

// AddModule registers a module and its types. Full names are derived from
// namespace and name when left empty.
func (w *World) AddModule(m Module) {
	for i := range m.Types {
		t := &m.Types[i]
		t.Module = m.Name
		if t.FullName == "" {
			t.FullName = t.Name
			if t.Namespace != "" {
				t.FullName = t.Namespace + "." + t.Name
			}
		}
	}
	w.modules = append(w.modules, m)
}

// AddInstance records obj as a live instance of fullName.
func (w *World) AddInstance(fullName string, obj Object) {
	w.instances[fullName] = append(w.instances[fullName], obj)
}

// AddSceneObject appends a node to the scene.
func (w *World) AddSceneObject(n *Node) {
	w.scene = append(w.scene, n)
}

// Lookup returns the type metadata registered under fullName.
func (w *World) Lookup(fullName string) (TypeInfo, bool) {
	for _, m := range w.modules {
		for _, t := range m.Types {
			if t.FullName == fullName {
				return t, true
			}
		}
	}
	return TypeInfo{}, false
}

func (w *World) Modules() []Module {
	return w.modules
}

func (w *World) Instances(fullName string) []Object {
	var live []Object
	for _, obj := range w.instances[fullName] {
		if IsAlive(obj) {
			live = append(live, obj)
		}
	}
	return live
}

func (w *World) FindByTag(tag string) SceneObject {
	if tag == "" {
		return nil
	}
	for _, n := range w.scene {
		if n.Alive() && n.tag == tag {
			return n
		}
	}
	return nil
}

func (w *World) FindByName(name string) SceneObject {
	if name == "" {
		return nil
	}
	for _, n := range w.scene {
		if n.Alive() && n.name == name {
			return n
		}
	}
	return nil
}

func (w *World) SceneObjects() []SceneObject {
	objs := make([]SceneObject, 0, len(w.scene))
	for _, n := range w.scene {
		if n.Alive() {
			objs = append(objs, n)
		}
	}
	return objs
}
