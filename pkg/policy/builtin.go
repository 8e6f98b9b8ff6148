package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	policies := []Policy{
		boundedDeltasPolicy(),
		compensationFactorPolicy(),
		schedulePolicy(),
		lookupsPolicy(),
		itemModifiersPolicy(),
	}
	now := time.Now()
	for i := range policies {
		policies[i].Builtin = true
		policies[i].Enabled = true
		policies[i].CreatedAt = now
		policies[i].UpdatedAt = now
	}
	return policies
}

// boundedDeltasPolicy keeps every patch delta positive and below the
// configured maximum.
func boundedDeltasPolicy() Policy {
	return Policy{
		Name:        "bounded-deltas",
		Description: "Patch deltas must be positive and no larger than max_delta",
		Severity:    SeverityError,
		Tags:        []string{"patches", "limits"},
		Rego: `package stattweaks.policies.deltas

import rego.v1

deny contains violation if {
	some i
	patch := input.profile.patches[i]
	patch.delta <= 0
	violation := {
		"message": sprintf("patch %s: delta %v must be positive", [patch.id, patch.delta]),
		"path": sprintf("patches[%d].delta", [i]),
	}
}

deny contains violation if {
	some i
	patch := input.profile.patches[i]
	limit := data.stattweaks.params.max_delta
	patch.delta > limit
	violation := {
		"message": sprintf("patch %s: delta %v exceeds the limit of %v", [patch.id, patch.delta, limit]),
		"path": sprintf("patches[%d].delta", [i]),
	}
}
`,
	}
}

// compensationFactorPolicy keeps the refund factor in [0, 1).
func compensationFactorPolicy() Policy {
	return Policy{
		Name:        "compensation-factor",
		Description: "The compensation factor must be at least 0 and below 1",
		Severity:    SeverityError,
		Tags:        []string{"compensation"},
		Rego: `package stattweaks.policies.compensation

import rego.v1

deny contains violation if {
	factor := input.profile.compensation.factor
	factor < 0
	violation := {
		"message": sprintf("compensation factor %v must not be negative", [factor]),
		"path": "compensation.factor",
	}
}

deny contains violation if {
	factor := input.profile.compensation.factor
	factor >= 1
	violation := {
		"message": sprintf("compensation factor %v would refund the whole decrease", [factor]),
		"path": "compensation.factor",
	}
}

deny contains violation if {
	factor := input.profile.compensation.factor
	factor > 0.5
	factor < 1
	violation := {
		"message": sprintf("compensation factor %v refunds more than half of every decrease", [factor]),
		"path": "compensation.factor",
		"severity": "warning",
	}
}
`,
	}
}

// schedulePolicy checks the retry window.
func schedulePolicy() Policy {
	return Policy{
		Name:        "schedule",
		Description: "The retry interval must be positive and the deadline between the interval and max_deadline_seconds",
		Severity:    SeverityError,
		Tags:        []string{"schedule"},
		Rego: `package stattweaks.policies.schedule

import rego.v1

deny contains violation if {
	input.profile.schedule.retry_interval_seconds <= 0
	violation := {
		"message": "retry interval must be positive",
		"path": "schedule.retry_interval_seconds",
	}
}

deny contains violation if {
	s := input.profile.schedule
	s.deadline_seconds < s.retry_interval_seconds
	violation := {
		"message": sprintf("deadline %vs is shorter than the retry interval %vs", [s.deadline_seconds, s.retry_interval_seconds]),
		"path": "schedule.deadline_seconds",
	}
}

deny contains violation if {
	s := input.profile.schedule
	limit := data.stattweaks.params.max_deadline_seconds
	s.deadline_seconds > limit
	violation := {
		"message": sprintf("deadline %vs exceeds the limit of %vs", [s.deadline_seconds, limit]),
		"path": "schedule.deadline_seconds",
	}
}
`,
	}
}

// lookupsPolicy checks that every patch can find its attribute and that
// every referenced entity is defined.
func lookupsPolicy() Policy {
	return Policy{
		Name:        "lookups",
		Description: "Patches need a lookup path and may only reference defined entities",
		Severity:    SeverityError,
		Tags:        []string{"patches", "entities"},
		Rego: `package stattweaks.policies.lookups

import rego.v1

entities := {e.name | some e in input.profile.entities}

has_lookup(p) if count(object.get(p, "candidates", [])) > 0

has_lookup(p) if object.get(p, "chain", "") != ""

has_lookup(p) if object.get(p, "component", "") != ""

deny contains violation if {
	some i
	patch := input.profile.patches[i]
	not has_lookup(patch)
	violation := {
		"message": sprintf("patch %s has no candidates, chain or component", [patch.id]),
		"path": sprintf("patches[%d]", [i]),
	}
}

deny contains violation if {
	some i
	patch := input.profile.patches[i]
	some field in ["entity", "component"]
	name := object.get(patch, field, "")
	name != ""
	not name in entities
	violation := {
		"message": sprintf("patch %s references unknown entity %s", [patch.id, name]),
		"path": sprintf("patches[%d].%s", [i, field]),
	}
}

deny contains violation if {
	name := input.profile.compensation.entity
	not name in entities
	violation := {
		"message": sprintf("compensation references unknown entity %s", [name]),
		"path": "compensation.entity",
	}
}
`,
	}
}

// itemModifiersPolicy flags item modifiers that do nothing.
func itemModifiersPolicy() Policy {
	return Policy{
		Name:        "item-modifiers",
		Description: "Warns about buff item modifiers without effect",
		Severity:    SeverityWarning,
		Tags:        []string{"inventory"},
		Rego: `package stattweaks.policies.items

import rego.v1

deny contains violation if {
	input.profile.inventory.enabled
	some i
	m := input.profile.inventory.item.modifiers[i]
	m.value == 0
	violation := {
		"message": sprintf("modifier %s has no effect", [m.key]),
		"path": sprintf("inventory.item.modifiers[%d].value", [i]),
	}
}

deny contains violation if {
	input.profile.inventory.enabled
	count(object.get(input.profile.inventory.item, "modifiers", [])) == 0
	violation := {
		"message": "buff item carries no modifiers",
		"path": "inventory.item.modifiers",
	}
}
`,
	}
}
