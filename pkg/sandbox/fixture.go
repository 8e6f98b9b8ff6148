package sandbox

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/stattweaks/pkg/inventory"
	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

// DefaultFirstItemID is the first ID the fixture catalog assigns.
const DefaultFirstItemID = 9000

// WorldFile is the YAML form of a sandbox world.
type WorldFile struct {
	Modules []ModuleSpec `yaml:"modules"`
	Objects []ObjectSpec `yaml:"objects"`
	Scene   []NodeSpec   `yaml:"scene"`
	Catalog CatalogSpec  `yaml:"catalog"`
}

// ModuleSpec declares a loaded module and its types.
type ModuleSpec struct {
	Name  string     `yaml:"name"`
	Types []TypeSpec `yaml:"types"`
}

// TypeSpec declares one type and its members.
type TypeSpec struct {
	Namespace string            `yaml:"namespace"`
	Name      string            `yaml:"name"`
	Members   []objmodel.Member `yaml:"members"`
}

// ObjectSpec declares an object.
type ObjectSpec struct {
	// ID names the object within the fixture; refs, components and
	// scenarios use it.
	ID   string `yaml:"id"`
	Type string `yaml:"type"`

	// Instance registers the object as a live instance of Type.
	Instance bool `yaml:"instance"`

	// Singleton registers the object in the registry under this key.
	Singleton string `yaml:"singleton"`

	// Dormant objects stay unregistered until a spawn mutation.
	Dormant bool `yaml:"dormant"`

	Attributes map[string]interface{} `yaml:"attributes"`

	// Refs map reference names to object IDs. An empty ID is a null reference.
	Refs map[string]string `yaml:"refs"`

	ReadOnly []string `yaml:"read_only"`

	// Inventory attaches an item bag to the object.
	Inventory *BagSpec `yaml:"inventory"`
}

// BagSpec configures an attached inventory.
type BagSpec struct {
	Slots int `yaml:"slots"`
}

// NodeSpec declares a scene object.
type NodeSpec struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`

	// Components map type full names to object IDs.
	Components map[string]string `yaml:"components"`

	Dormant bool `yaml:"dormant"`
}

// CatalogSpec configures the item catalog.
type CatalogSpec struct {
	FirstID int `yaml:"first_id"`
}

// Fixture is a loaded sandbox world.
type Fixture struct {
	World    *objmodel.World
	Registry *locate.Registry
	Catalog  *inventory.MemoryCatalog

	objects map[string]*objmodel.Table
	specs   map[string]ObjectSpec
	nodes   map[string]*objmodel.Node
	dormant map[string]bool
}

// LoadWorld reads a YAML world file.
func LoadWorld(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	fx, err := ParseWorld(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

// ParseWorld builds a fixture from YAML.
func ParseWorld(data []byte) (*Fixture, error) {
	var wf WorldFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse world YAML: %w", err)
	}
	return Build(wf)
}

// Build creates a fixture from a parsed world file.
func Build(wf WorldFile) (*Fixture, error) {
	firstID := wf.Catalog.FirstID
	if firstID == 0 {
		firstID = DefaultFirstItemID
	}
	fx := &Fixture{
		World:    objmodel.NewWorld(),
		Registry: locate.NewRegistry(),
		Catalog:  inventory.NewMemoryCatalog(firstID),
		objects:  make(map[string]*objmodel.Table),
		specs:    make(map[string]ObjectSpec),
		nodes:    make(map[string]*objmodel.Node),
		dormant:  make(map[string]bool),
	}

	for _, ms := range wf.Modules {
		if ms.Name == "" {
			return nil, fmt.Errorf("module without a name")
		}
		m := objmodel.Module{Name: ms.Name}
		for _, ts := range ms.Types {
			m.Types = append(m.Types, objmodel.TypeInfo{
				Namespace: ts.Namespace,
				Name:      ts.Name,
				Members:   ts.Members,
			})
		}
		fx.World.AddModule(m)
	}

	// Create every object before linking so refs may point forward.
	for _, spec := range wf.Objects {
		if spec.ID == "" {
			return nil, fmt.Errorf("object of type %q without an id", spec.Type)
		}
		if _, dup := fx.objects[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate object id %q", spec.ID)
		}
		typeName := spec.Type
		if typeName == "" {
			typeName = spec.ID
		}
		tbl := objmodel.NewTable(typeName)
		for _, name := range sortedKeys(spec.Attributes) {
			tbl.Set(name, spec.Attributes[name])
		}
		for _, name := range spec.ReadOnly {
			tbl.ReadOnly(name)
		}
		if spec.Inventory != nil {
			tbl.Attach(inventory.NewBag(spec.Inventory.Slots, fx.Catalog))
		}
		fx.objects[spec.ID] = tbl
		fx.specs[spec.ID] = spec
	}

	for _, spec := range wf.Objects {
		tbl := fx.objects[spec.ID]
		for name, targetID := range spec.Refs {
			if targetID == "" {
				tbl.Link(name, nil)
				continue
			}
			target, ok := fx.objects[targetID]
			if !ok {
				return nil, fmt.Errorf("object %q: ref %s points to unknown object %q", spec.ID, name, targetID)
			}
			tbl.Link(name, target)
		}
		if spec.Dormant {
			fx.dormant[spec.ID] = true
			continue
		}
		fx.register(spec.ID)
	}

	for _, ns := range wf.Scene {
		if ns.Name == "" {
			return nil, fmt.Errorf("scene object without a name")
		}
		if _, dup := fx.nodes[ns.Name]; dup {
			return nil, fmt.Errorf("duplicate scene object %q", ns.Name)
		}
		node := objmodel.NewNode(ns.Name, ns.Tag)
		for typeName, id := range ns.Components {
			obj, ok := fx.objects[id]
			if !ok {
				return nil, fmt.Errorf("scene object %q: component %s points to unknown object %q", ns.Name, typeName, id)
			}
			node.AddComponent(typeName, obj)
		}
		fx.nodes[ns.Name] = node
		if ns.Dormant {
			fx.dormant[nodeKey(ns.Name)] = true
			continue
		}
		fx.World.AddSceneObject(node)
	}

	return fx, nil
}

func (fx *Fixture) register(id string) {
	spec := fx.specs[id]
	tbl := fx.objects[id]
	if spec.Instance {
		fx.World.AddInstance(tbl.TypeName(), tbl)
	}
	if spec.Singleton != "" {
		fx.Registry.Register(spec.Singleton, tbl)
	}
}

// Object returns the object with the given fixture ID.
func (fx *Fixture) Object(id string) (*objmodel.Table, bool) {
	tbl, ok := fx.objects[id]
	return tbl, ok
}

// Node returns the scene object with the given name.
func (fx *Fixture) Node(name string) (*objmodel.Node, bool) {
	n, ok := fx.nodes[name]
	return n, ok
}

// Bag returns the inventory attached to an object, if any.
func (fx *Fixture) Bag(id string) (*inventory.Bag, bool) {
	tbl, ok := fx.objects[id]
	if !ok {
		return nil, false
	}
	bag, ok := tbl.Unwrap().(*inventory.Bag)
	return bag, ok
}

// Number reads a numeric attribute of an object.
func (fx *Fixture) Number(id, attribute string) (float64, error) {
	tbl, ok := fx.objects[id]
	if !ok {
		return 0, fmt.Errorf("unknown object %q", id)
	}
	return tbl.Number(attribute)
}

// Alive reports whether the object exists, is spawned and is not destroyed.
func (fx *Fixture) Alive(id string) bool {
	tbl, ok := fx.objects[id]
	return ok && !fx.dormant[id] && tbl.Alive()
}

func nodeKey(name string) string {
	return "scene:" + name
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
