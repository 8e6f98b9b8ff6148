// Package config loads and validates stat tuning profiles.
//
// # Profiles
//
// A Profile names the entities to locate, the patches to apply, and the
// settings of the compensation fallback, the damage probe, the retry window,
// the buff item grant and the diagnostic scanner. DefaultProfile returns the
// stock tuning: +40 max health, +1.5 head and body armor, a 0.15 refund
// factor, and a 20 second window retried every second.
//
// # CUE Profile Files
//
// Profile files are written in CUE and override the stock profile. Lists
// replace the stock list; structs are merged field by field:
//
//	name: "hardcore"
//	compensation: factor: 0.05
//	schedule: deadline_seconds: 30
//	patches: [{
//	    id:         "max_health"
//	    kind:       "max_boost"
//	    entity:     "player"
//	    delta:      25
//	    candidates: ["MaxHealth"]
//	    chain:      "Stats.Health.Max"
//	}]
//
// Files are unified with the closed #Profile schema, so unknown fields and
// out-of-range values are reported with file, line and column. The merged
// profile is then checked with go-playground/validator struct tags and for
// cross references (every entity a patch names must be defined).
//
// # Environment
//
// LoadEnvironment reads STATTWEAKS_* variables with caarlos0/env.
// STATTWEAKS_COMPENSATION_FACTOR and STATTWEAKS_DISABLE_INVENTORY override
// the loaded profile; the remaining variables configure the process.
package config
