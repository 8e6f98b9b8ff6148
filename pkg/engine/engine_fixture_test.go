package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/objmodel"
)

const (
	testPlayerType = "Game.Core.PlayerController"
	testHealthType = "Game.Core.CharacterHealth"
)

var (
	currentNames = []string{"Current", "current", "Value", "value", "HP", "hp"}
	maxNames     = []string{"Max", "max", "MaxHealth", "maxHealth"}
)

// fixture is a small host with a player and a health component on the
// "Player" scene object.
type fixture struct {
	world   *objmodel.World
	player  *objmodel.Table
	health  *objmodel.Table
	locator *locate.Locator
}

func newFixture() *fixture {
	w := objmodel.NewWorld()
	w.AddModule(objmodel.Module{
		Name: "Game.Core",
		Types: []objmodel.TypeInfo{
			{Namespace: "Game.Core", Name: "PlayerController"},
			{Namespace: "Game.Core", Name: "CharacterHealth"},
		},
	})

	player := objmodel.NewTable(testPlayerType)
	health := objmodel.NewTable(testHealthType).Set("Current", 80.0).Set("Max", 100.0)
	w.AddInstance(testPlayerType, player)
	w.AddSceneObject(objmodel.NewNode("Player", "Player").
		AddComponent(testPlayerType, player).
		AddComponent(testHealthType, health))

	loc := locate.New(w, locate.NewRegistry(), zerolog.Nop(),
		locate.Entity{Name: "player", Types: []string{testPlayerType, "PlayerController", "Player"}, Tags: []string{"Player"}},
		locate.Entity{Name: "health", Types: []string{"Health", "PlayerHealth", "CharacterHealth"}, Tags: []string{"Player"}, SceneNames: []string{"Player"}},
	)
	return &fixture{world: w, player: player, health: health, locator: loc}
}

func maxHealthSpec() PatchSpec {
	return PatchSpec{
		ID:                "max_health",
		Kind:              PatchKindMaxBoost,
		Entity:            "player",
		Delta:             40,
		Candidates:        []string{"MaxHealth", "maxHealth"},
		Chain:             []string{"Stats", "Health", "Max"},
		Component:         "health",
		MaxCandidates:     maxNames,
		CurrentCandidates: currentNames,
	}
}

func armorSpec(id string, names []string, chain []string) PatchSpec {
	return PatchSpec{
		ID:         id,
		Kind:       PatchKindAdditive,
		Entity:     "player",
		Delta:      1.5,
		Candidates: names,
		Chain:      chain,
	}
}

func defaultSpecs() []PatchSpec {
	return []PatchSpec{
		maxHealthSpec(),
		armorSpec("head_armor", []string{"HeadArmor", "ArmorHead", "armorHead", "DefenseHead"}, []string{"Armor", "Head", "Rating"}),
		armorSpec("body_armor", []string{"BodyArmor", "ArmorBody", "armorBody", "DefenseBody"}, []string{"Armor", "Body", "Rating"}),
	}
}

func compensationSpec(factor float64) CompensationSpec {
	return CompensationSpec{
		Entity:            "health",
		Factor:            factor,
		CurrentCandidates: currentNames,
		MaxCandidates:     maxNames,
	}
}

// recordingObserver counts observations.
type recordingObserver struct {
	attempts map[string]int
	applied  map[string]int
	refunds  []float64
	phases   []string
	errors   map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		attempts: make(map[string]int),
		applied:  make(map[string]int),
		errors:   make(map[string]int),
	}
}

func (o *recordingObserver) ObservePatchAttempt(id string, _ bool) { o.attempts[id]++ }
func (o *recordingObserver) ObservePatchApplied(id string)         { o.applied[id]++ }
func (o *recordingObserver) ObserveRefund(amount float64)          { o.refunds = append(o.refunds, amount) }
func (o *recordingObserver) ObservePhase(phase string)             { o.phases = append(o.phases, phase) }
func (o *recordingObserver) ObserveError(class string)             { o.errors[class]++ }
func (o *recordingObserver) ObserveTick(time.Duration)             {}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, e *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return nil
}

func (p *recordingPublisher) ofType(t EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fixedProbe answers a constant and counts calls.
type fixedProbe struct {
	confirm bool
	calls   int
}

func (p *fixedProbe) TryConfirmHook(context.Context) bool {
	p.calls++
	return p.confirm
}

func number(t testing.TB, obj objmodel.Object, name string) float64 {
	t.Helper()
	v, err := obj.Number(name)
	if err != nil {
		t.Fatalf("Number(%s) error: %v", name, err)
	}
	return v
}

// panickingLocator panics on every lookup.
type panickingLocator struct{}

func (panickingLocator) Locate(context.Context, string) (locate.Match, error) {
	panic("host exploded")
}
