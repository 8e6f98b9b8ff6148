package policy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/config"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger, opts...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func hasPath(vs []Violation, path string) bool {
	for _, v := range vs {
		if v.Path == path {
			return true
		}
	}
	return false
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	expected := []string{
		"bounded-deltas",
		"compensation-factor",
		"item-modifiers",
		"lookups",
		"schedule",
	}
	policies := eng.ListPolicies()
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, p := range policies {
		if p.Name != expected[i] {
			t.Errorf("policy %d = %s, want %s", i, p.Name, expected[i])
		}
		if !p.Builtin || !p.Enabled {
			t.Errorf("policy %s should be an enabled built-in", p.Name)
		}
	}
}

func TestEvaluateDefaultProfile(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Evaluate(context.Background(), config.DefaultProfile(), nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !result.Allowed {
		t.Errorf("default profile rejected: %+v", result.Violations)
	}
	if len(result.Warnings) != 0 || len(result.Failures) != 0 {
		t.Errorf("unexpected findings: warnings=%+v failures=%v", result.Warnings, result.Failures)
	}
	if len(result.EvaluatedPolicies) != 5 {
		t.Errorf("evaluated %d policies, want 5", len(result.EvaluatedPolicies))
	}
}

func TestEvaluateProfileViolations(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name        string
		mutate      func(p *config.Profile)
		wantAllowed bool
		wantPath    string
		wantWarning bool
	}{
		{
			name:        "delta above limit",
			mutate:      func(p *config.Profile) { p.Patches[0].Delta = 900 },
			wantAllowed: false,
			wantPath:    "patches[0].delta",
		},
		{
			name:        "negative delta",
			mutate:      func(p *config.Profile) { p.Patches[2].Delta = -1 },
			wantAllowed: false,
			wantPath:    "patches[2].delta",
		},
		{
			name:        "factor of one",
			mutate:      func(p *config.Profile) { p.Compensation.Factor = 1 },
			wantAllowed: false,
			wantPath:    "compensation.factor",
		},
		{
			name:        "generous factor warns",
			mutate:      func(p *config.Profile) { p.Compensation.Factor = 0.8 },
			wantAllowed: true,
			wantPath:    "compensation.factor",
			wantWarning: true,
		},
		{
			name: "deadline shorter than interval",
			mutate: func(p *config.Profile) {
				p.Schedule.RetryIntervalSeconds = 5
				p.Schedule.DeadlineSeconds = 2
			},
			wantAllowed: false,
			wantPath:    "schedule.deadline_seconds",
		},
		{
			name:        "deadline over ten minutes",
			mutate:      func(p *config.Profile) { p.Schedule.DeadlineSeconds = 900 },
			wantAllowed: false,
			wantPath:    "schedule.deadline_seconds",
		},
		{
			name: "patch without lookup",
			mutate: func(p *config.Profile) {
				p.Patches[1].Candidates = nil
				p.Patches[1].Chain = ""
			},
			wantAllowed: false,
			wantPath:    "patches[1]",
		},
		{
			name:        "unknown component entity",
			mutate:      func(p *config.Profile) { p.Patches[0].Component = "shield" },
			wantAllowed: false,
			wantPath:    "patches[0].component",
		},
		{
			name:        "unknown compensation entity",
			mutate:      func(p *config.Profile) { p.Compensation.Entity = "enemy" },
			wantAllowed: false,
			wantPath:    "compensation.entity",
		},
		{
			name:        "zero modifier warns",
			mutate:      func(p *config.Profile) { p.Inventory.Item.Modifiers[1].Value = 0 },
			wantAllowed: true,
			wantPath:    "inventory.item.modifiers[1].value",
			wantWarning: true,
		},
		{
			name: "disabled inventory is not checked",
			mutate: func(p *config.Profile) {
				p.Inventory.Enabled = false
				p.Inventory.Item.Modifiers[0].Value = 0
			},
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := config.DefaultProfile()
			tt.mutate(profile)

			result, err := eng.Evaluate(context.Background(), profile, &Context{Operation: "validate", Source: "test"})
			if err != nil {
				t.Fatalf("Evaluate() error: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (violations %+v)", result.Allowed, tt.wantAllowed, result.Violations)
			}
			if tt.wantPath == "" {
				if len(result.Violations)+len(result.Warnings) != 0 {
					t.Errorf("unexpected findings: %+v %+v", result.Violations, result.Warnings)
				}
				return
			}
			found := result.Violations
			if tt.wantWarning {
				found = result.Warnings
			}
			if !hasPath(found, tt.wantPath) {
				t.Errorf("no finding at %s: violations=%+v warnings=%+v", tt.wantPath, result.Violations, result.Warnings)
			}
		})
	}
}

func TestWithParams(t *testing.T) {
	eng := newTestEngine(t, WithParams(Params{MaxDelta: 10, MaxDeadlineSeconds: 600}))

	result, err := eng.Evaluate(context.Background(), config.DefaultProfile(), nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if result.Allowed {
		t.Fatal("a +40 boost should exceed a max_delta of 10")
	}
	if !hasPath(result.Violations, "patches[0].delta") || hasPath(result.Violations, "patches[1].delta") {
		t.Errorf("violations = %+v", result.Violations)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	profile := config.DefaultProfile()
	profile.Compensation.Factor = 1.2

	if err := eng.DisablePolicy("compensation-factor"); err != nil {
		t.Fatalf("DisablePolicy() error: %v", err)
	}
	result, err := eng.Evaluate(context.Background(), profile, nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !result.Allowed {
		t.Errorf("disabled policy still rejected the profile: %+v", result.Violations)
	}

	if err := eng.EnablePolicy("compensation-factor"); err != nil {
		t.Fatalf("EnablePolicy() error: %v", err)
	}
	result, err = eng.Evaluate(context.Background(), profile, nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if result.Allowed {
		t.Error("re-enabled policy did not reject the profile")
	}

	if err := eng.DisablePolicy("nope"); err == nil {
		t.Error("DisablePolicy() on an unknown policy should fail")
	}
}

func TestSetExternalPolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	custom := Policy{
		Name:     "hardcore",
		Severity: SeverityError,
		Enabled:  true,
		Rego: `package stattweaks.custom.hardcore

import rego.v1

deny contains "max health boosts are not allowed" if {
	some patch in input.profile.patches
	patch.kind == "max_boost"
}
`,
	}
	if err := eng.SetExternalPolicies(ctx, []Policy{custom}); err != nil {
		t.Fatalf("SetExternalPolicies() error: %v", err)
	}

	result, err := eng.Evaluate(ctx, config.DefaultProfile(), nil)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if result.Allowed || len(result.Violations) != 1 || result.Violations[0].Policy != "hardcore" {
		t.Errorf("result = %+v", result)
	}

	// Replacing external policies drops the previous set.
	if err := eng.SetExternalPolicies(ctx, nil); err != nil {
		t.Fatalf("SetExternalPolicies(nil) error: %v", err)
	}
	if _, err := eng.GetPolicy("hardcore"); err == nil {
		t.Error("external policy survived replacement")
	}

	broken := Policy{Name: "broken", Rego: "package x\n\ndeny contains if {"}
	if err := eng.SetExternalPolicies(ctx, []Policy{broken}); err == nil {
		t.Error("expected a compile error")
	}

	shadow := GetBuiltinPolicies()[0]
	if err := eng.SetExternalPolicies(ctx, []Policy{shadow}); err == nil {
		t.Error("expected an error when shadowing a built-in policy")
	}
	if p, err := eng.GetPolicy(shadow.Name); err != nil || !p.Builtin {
		t.Errorf("built-in policy replaced: %+v, %v", p, err)
	}
}

func TestCreateViolation(t *testing.T) {
	p := &Policy{Name: "p", Severity: SeverityError}

	v := createViolation(p, map[string]interface{}{
		"message":  "too big",
		"path":     "patches[0].delta",
		"severity": "warning",
		"limit":    500.0,
	}, timeZero)
	if v.Message != "too big" || v.Path != "patches[0].delta" || v.Severity != SeverityWarning {
		t.Errorf("violation = %+v", v)
	}
	if v.Details["limit"] != 500.0 {
		t.Errorf("details = %+v", v.Details)
	}

	if v := createViolation(p, "plain", timeZero); v.Message != "plain" || v.Severity != SeverityError {
		t.Errorf("string violation = %+v", v)
	}
}

var timeZero time.Time
