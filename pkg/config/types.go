package config

import (
	"fmt"
	"time"

	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/inventory"
	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/resolve"
)

// Profile is the complete tuning profile: which entities to locate, which
// patches to apply and how the fallback and glue behave.
type Profile struct {
	// Name identifies the profile in logs and the run journal.
	Name string `json:"name" validate:"required"`

	// Entities are the conceptual objects patches refer to.
	Entities []locate.Entity `json:"entities" validate:"required,min=1,dive"`

	// Patches are applied once each during the retry window.
	Patches []PatchConfig `json:"patches" validate:"dive"`

	// Compensation configures the polling fallback.
	Compensation CompensationConfig `json:"compensation"`

	// Probe configures the damage event probe.
	Probe ProbeConfig `json:"probe"`

	// Schedule configures the retry window.
	Schedule ScheduleConfig `json:"schedule"`

	// Inventory configures the buff item grant.
	Inventory InventoryConfig `json:"inventory"`

	// Scan configures the one-shot diagnostic scanner.
	Scan ScanConfig `json:"scan"`
}

// PatchConfig is the declarative form of engine.PatchSpec.
type PatchConfig struct {
	ID     string  `json:"id" validate:"required"`
	Kind   string  `json:"kind" validate:"required,oneof=max_boost additive"`
	Entity string  `json:"entity,omitempty"`
	Delta  float64 `json:"delta" validate:"gt=0"`

	Candidates []string `json:"candidates,omitempty"`

	// Chain is a dotted attribute chain, e.g. "Stats.Health.Max".
	Chain string `json:"chain,omitempty"`

	Component         string   `json:"component,omitempty"`
	MaxCandidates     []string `json:"max_candidates,omitempty"`
	CurrentCandidates []string `json:"current_candidates,omitempty"`
}

// CompensationConfig configures the compensation fallback.
type CompensationConfig struct {
	Entity            string   `json:"entity" validate:"required"`
	Factor            float64  `json:"factor" validate:"gte=0,lt=1"`
	CurrentCandidates []string `json:"current_candidates" validate:"required,min=1"`
	MaxCandidates     []string `json:"max_candidates" validate:"required,min=1"`
}

// ProbeConfig configures the interception probe.
type ProbeConfig struct {
	TypeKeywords  []string `json:"type_keywords" validate:"required,min=1"`
	EventKeywords []string `json:"event_keywords" validate:"required,min=1"`
}

// ScheduleConfig bounds the retry window. Durations are in seconds.
type ScheduleConfig struct {
	RetryIntervalSeconds float64 `json:"retry_interval_seconds" validate:"gt=0"`
	DeadlineSeconds      float64 `json:"deadline_seconds" validate:"gt=0,gtefield=RetryIntervalSeconds"`

	// TickSeconds is the simulated frame interval used by sandbox runs.
	TickSeconds float64 `json:"tick_seconds" validate:"gt=0"`
}

// InventoryConfig configures the buff item granted to the player.
type InventoryConfig struct {
	Enabled bool `json:"enabled"`

	// Entity is the located owner of the inventory.
	Entity string `json:"entity" validate:"required_if=Enabled true"`

	// InventoryRefs are candidate reference names leading to the inventory.
	InventoryRefs []string `json:"inventory_refs" validate:"required_if=Enabled true"`

	Item ItemConfig `json:"item"`

	MaxAttempts     int     `json:"max_attempts" validate:"gte=1"`
	IntervalSeconds float64 `json:"interval_seconds" validate:"gt=0"`
}

// ItemConfig describes the item definition registered with the catalog.
type ItemConfig struct {
	Name        string           `json:"name" validate:"required"`
	DisplayName string           `json:"display_name"`
	Description string           `json:"description"`
	Category    string           `json:"category" validate:"required"`
	Tags        []string         `json:"tags"`
	StackLimit  int              `json:"stack_limit" validate:"gte=1"`
	Modifiers   []ModifierConfig `json:"modifiers" validate:"dive"`
}

// ModifierConfig is one stat modifier carried by the item.
type ModifierConfig struct {
	Key    string  `json:"key" validate:"required"`
	Value  float64 `json:"value"`
	Target int     `json:"target" validate:"gte=0"`
	Type   int     `json:"type" validate:"gte=0"`
}

// ScanConfig configures the diagnostic scanner.
type ScanConfig struct {
	Enabled       bool        `json:"enabled"`
	Prefix        string      `json:"prefix" validate:"required"`
	TargetModules []string    `json:"target_modules"`
	Groups        []ScanGroup `json:"groups" validate:"dive"`
}

// ScanGroup selects types whose name contains Keyword and their members
// whose name contains any of MemberTokens.
type ScanGroup struct {
	Keyword      string   `json:"keyword" validate:"required"`
	MemberTokens []string `json:"member_tokens" validate:"required,min=1"`
}

// ValidationError represents a profile error with source location.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path to the error (e.g., "patches[0].delta").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning).
	Severity string `json:"severity" validate:"required,oneof=error warning"`
}

func (e ValidationError) String() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}
	if e.Path != "" {
		if loc != "" {
			loc += " "
		}
		loc += e.Path
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Severity, e.Message)
}

// RetryInterval returns the pause between patch attempts.
func (s ScheduleConfig) RetryInterval() time.Duration {
	return seconds(s.RetryIntervalSeconds)
}

// Deadline returns the length of the retry window.
func (s ScheduleConfig) Deadline() time.Duration {
	return seconds(s.DeadlineSeconds)
}

// Tick returns the simulated frame interval.
func (s ScheduleConfig) Tick() time.Duration {
	return seconds(s.TickSeconds)
}

// Interval returns the pause between grant attempts.
func (c InventoryConfig) Interval() time.Duration {
	return seconds(c.IntervalSeconds)
}

// Item converts the item definition for the catalog.
func (c ItemConfig) Item() inventory.Item {
	mods := make([]inventory.Modifier, 0, len(c.Modifiers))
	for _, m := range c.Modifiers {
		mods = append(mods, inventory.Modifier{
			Key:    m.Key,
			Value:  m.Value,
			Target: inventory.ModifierTarget(m.Target),
			Type:   inventory.ModifierType(m.Type),
		})
	}
	return inventory.Item{
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Description: c.Description,
		Category:    c.Category,
		Tags:        clone(c.Tags),
		StackLimit:  c.StackLimit,
		Modifiers:   mods,
	}
}

// GranterOptions converts the inventory section into granter options.
func (c InventoryConfig) GranterOptions() inventory.Options {
	return inventory.Options{
		Entity:        c.Entity,
		InventoryRefs: clone(c.InventoryRefs),
		Item:          c.Item.Item(),
		MaxAttempts:   c.MaxAttempts,
		Interval:      c.Interval(),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Spec converts the declarative patch to an engine.PatchSpec.
func (p PatchConfig) Spec() engine.PatchSpec {
	var chain []string
	if p.Chain != "" {
		chain = resolve.ParseChain(p.Chain)
	}
	return engine.PatchSpec{
		ID:                p.ID,
		Kind:              engine.PatchKind(p.Kind),
		Entity:            p.Entity,
		Delta:             p.Delta,
		Candidates:        p.Candidates,
		Chain:             chain,
		Component:         p.Component,
		MaxCandidates:     p.MaxCandidates,
		CurrentCandidates: p.CurrentCandidates,
	}
}

// EngineOptions converts the profile into runtime options.
func (p *Profile) EngineOptions() engine.Options {
	specs := make([]engine.PatchSpec, 0, len(p.Patches))
	for _, pc := range p.Patches {
		specs = append(specs, pc.Spec())
	}
	return engine.Options{
		Patches: specs,
		Compensation: engine.CompensationSpec{
			Entity:            p.Compensation.Entity,
			Factor:            p.Compensation.Factor,
			CurrentCandidates: p.Compensation.CurrentCandidates,
			MaxCandidates:     p.Compensation.MaxCandidates,
		},
		Probe: engine.ProbeSpec{
			TypeKeywords:  p.Probe.TypeKeywords,
			EventKeywords: p.Probe.EventKeywords,
		},
		RetryInterval: p.Schedule.RetryInterval(),
		Deadline:      p.Schedule.Deadline(),
	}
}

// Entity returns the entity definition with the given name.
func (p *Profile) Entity(name string) (locate.Entity, bool) {
	for _, e := range p.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return locate.Entity{}, false
}
