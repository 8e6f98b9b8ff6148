package config

// profileSchema constrains profile files. Every field is optional: a profile
// file overrides the stock profile, replacing lists wholesale and merging
// structs field by field. Definitions are closed, so unknown fields fail.
const profileSchema = `
#Name: string & =~"^[a-zA-Z0-9_.-]+$"

#Entity: {
	// Role name referenced by patches, e.g. "player"
	name: #Name

	// Declared type names in priority order
	types: [string, ...string]

	tags?: [...string]
	scene_names?: [...string]
}

#Patch: {
	id:    #Name
	kind:  "max_boost" | "additive"
	delta: number & >0 & <=10000

	entity?: #Name
	candidates?: [...string]

	// Dotted attribute chain, e.g. "Stats.Health.Max"
	chain?: string & =~"^[A-Za-z_][A-Za-z0-9_]*(\\.[A-Za-z_][A-Za-z0-9_]*)*$"

	component?: #Name
	max_candidates?: [...string]
	current_candidates?: [...string]
}

#Modifier: {
	key:     string
	value:   number
	target?: int & >=0
	type?:   int & >=0
}

#Profile: {
	name?: #Name
	entities?: [...#Entity]
	patches?: [...#Patch]

	compensation?: {
		entity?: #Name
		factor?: number & >=0 & <1
		current_candidates?: [...string]
		max_candidates?: [...string]
	}

	probe?: {
		type_keywords?: [...string]
		event_keywords?: [...string]
	}

	schedule?: {
		retry_interval_seconds?: number & >0
		deadline_seconds?:       number & >0 & <=600
		tick_seconds?:           number & >0 & <=1
	}

	inventory?: {
		enabled?: bool
		entity?:  #Name
		inventory_refs?: [...string]
		item?: {
			name?:         string
			display_name?: string
			description?:  string
			category?:     string
			tags?: [...string]
			stack_limit?: int & >=1
			modifiers?: [...#Modifier]
		}
		max_attempts?:     int & >=1 & <=100
		interval_seconds?: number & >0
	}

	scan?: {
		enabled?: bool
		prefix?:  string
		target_modules?: [...string]
		groups?: [...{
			keyword: string
			member_tokens: [string, ...string]
		}]
	}
}
`
