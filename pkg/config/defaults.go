package config

import (
	"github.com/openfroyo/stattweaks/pkg/locate"
)

// Tuning constants of the stock profile.
const (
	DefaultMaxHealthBoost     = 40.0
	DefaultArmorBoost         = 1.5
	DefaultCompensationFactor = 0.15
	DefaultRetrySeconds       = 1.0
	DefaultDeadlineSeconds    = 20.0
	DefaultTickSeconds        = 1.0 / 60.0

	DefaultGrantAttempts        = 10
	DefaultGrantIntervalSeconds = 1.0

	// DefaultScanPrefix prefixes every diagnostic line and names the scan log.
	DefaultScanPrefix = "[StatScanner]"
)

var (
	// CurrentCandidates name the current quantity on a health-like component.
	CurrentCandidates = []string{"Current", "current", "Value", "value", "HP", "hp"}

	// MaxCandidates name the maximum quantity on a health-like component.
	MaxCandidates = []string{"Max", "max", "MaxHealth", "maxHealth"}
)

// DefaultProfile returns the stock profile: +40 max health, +1.5 head and
// body armor, a 0.15 refund factor, and a 20 second window retried every second.
func DefaultProfile() *Profile {
	return &Profile{
		Name: "default",
		Entities: []locate.Entity{
			{
				Name: "player",
				Types: []string{
					"TeamSoda.Duckov.Core.PlayerController",
					"TeamSoda.Duckov.Core.Player.PlayerController",
					"PlayerController",
					"Player",
					"PlayerStats",
				},
				Tags:       []string{"Player"},
				SceneNames: []string{"Player"},
			},
			{
				Name:       "health",
				Types:      []string{"Health", "PlayerHealth", "CharacterHealth"},
				Tags:       []string{"Player"},
				SceneNames: []string{"Player"},
			},
		},
		Patches: []PatchConfig{
			{
				ID:                "max_health",
				Kind:              "max_boost",
				Entity:            "player",
				Delta:             DefaultMaxHealthBoost,
				Candidates:        []string{"MaxHealth", "maxHealth"},
				Chain:             "Stats.Health.Max",
				Component:         "health",
				MaxCandidates:     clone(MaxCandidates),
				CurrentCandidates: clone(CurrentCandidates),
			},
			{
				ID:         "head_armor",
				Kind:       "additive",
				Entity:     "player",
				Delta:      DefaultArmorBoost,
				Candidates: []string{"HeadArmor", "ArmorHead", "armorHead", "DefenseHead"},
				Chain:      "Armor.Head.Rating",
			},
			{
				ID:         "body_armor",
				Kind:       "additive",
				Entity:     "player",
				Delta:      DefaultArmorBoost,
				Candidates: []string{"BodyArmor", "ArmorBody", "armorBody", "DefenseBody"},
				Chain:      "Armor.Body.Rating",
			},
		},
		Compensation: CompensationConfig{
			Entity:            "health",
			Factor:            DefaultCompensationFactor,
			CurrentCandidates: clone(CurrentCandidates),
			MaxCandidates:     clone(MaxCandidates),
		},
		Probe: ProbeConfig{
			TypeKeywords:  []string{"Damage", "Combat"},
			EventKeywords: []string{"OnBeforeDamageApplied", "OnCalculateDamage", "DamageCalculated"},
		},
		Schedule: ScheduleConfig{
			RetryIntervalSeconds: DefaultRetrySeconds,
			DeadlineSeconds:      DefaultDeadlineSeconds,
			TickSeconds:          DefaultTickSeconds,
		},
		Inventory: InventoryConfig{
			Enabled:       true,
			Entity:        "player",
			InventoryRefs: []string{"Inventory", "inventory", "PlayerInventory"},
			Item: ItemConfig{
				Name:        "Totem_StatBuff",
				DisplayName: "Stat Buff Totem",
				Description: "Raises max health and armor while carried.",
				Category:    "Totem",
				Tags:        []string{"Totem", "DontDropOnDeadInSlot"},
				StackLimit:  1,
				Modifiers: []ModifierConfig{
					{Key: "Stat_MaxHealth", Value: 50, Target: 2, Type: 0},
					{Key: "Stat_BodyArmor", Value: 2.4, Target: 2, Type: 0},
					{Key: "Stat_HeadArmor", Value: 2.4, Target: 2, Type: 0},
				},
			},
			MaxAttempts:     DefaultGrantAttempts,
			IntervalSeconds: DefaultGrantIntervalSeconds,
		},
		Scan: ScanConfig{
			Enabled: true,
			Prefix:  DefaultScanPrefix,
			TargetModules: []string{
				"Duckov.Modding",
				"TeamSoda.Duckov.Core",
				"TeamSoda.Duckov.Utilities",
				"ItemStatsSystem",
				"Assembly-CSharp",
			},
			Groups: []ScanGroup{
				{Keyword: "Health", MemberTokens: []string{"Max", "Current", "Value", "Health"}},
				{Keyword: "Armor", MemberTokens: []string{"Head", "Body", "Armor", "Rating", "Value"}},
				{Keyword: "Damage", MemberTokens: []string{"Damage", "On", "Physical", "Type"}},
			},
		},
	}
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
