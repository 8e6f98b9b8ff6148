package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const customRego = `# Rejects profiles that disable the item grant.
# severity: error
package stattweaks.custom.items

import rego.v1

deny contains "the buff item must stay enabled" if {
	not input.profile.inventory.enabled
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	path := filepath.Join(t.TempDir(), "require-items.rego")
	writeFile(t, path, customRego)

	policy, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "require-items" {
		t.Errorf("Expected name 'require-items', got '%s'", policy.Name)
	}
	if policy.Description != "Rejects profiles that disable the item grant." {
		t.Errorf("Description = %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Severity = %s, want error", policy.Severity)
	}
	if !policy.Enabled || policy.Rego != customRego {
		t.Error("policy not loaded as written")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(*testing.T, *Policy)
	}{
		{
			name:    "defaults",
			content: `{"name": "json-policy", "rego": "package p\n", "enabled": true}`,
			check: func(t *testing.T, p *Policy) {
				if p.Severity != SeverityWarning || p.CreatedAt.IsZero() {
					t.Errorf("defaults not applied: %+v", p)
				}
			},
		},
		{name: "missing name", content: `{"rego": "package p\n"}`, wantErr: true},
		{name: "invalid json", content: `{not json`, wantErr: true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeFile(t, path, tt.content)
			p, err := loader.loadFromFile(context.Background(), path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("case %d: error = %v, wantErr %v", i, err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestLoadFromFile_UnsupportedType(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, "hello")

	if _, err := loader.loadFromFile(context.Background(), path); err == nil {
		t.Error("expected an error for a .txt file")
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), customRego)
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "nested", "broken.json"), "{")
	writeFile(t, filepath.Join(dir, "README.md"), "# docs")
	single := filepath.Join(t.TempDir(), "c.rego")
	writeFile(t, single, "package c\n")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir, single})
	if err != nil {
		t.Fatalf("LoadFromPaths() error: %v", err)
	}
	names := map[string]bool{}
	for _, p := range policies {
		names[p.Name] = true
	}
	if len(policies) != 3 || !names["a"] || !names["b"] || !names["c"] {
		t.Errorf("loaded %v", names)
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestCacheAndClear(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	path := filepath.Join(t.TempDir(), "p.rego")
	writeFile(t, path, "package one\n")

	first, _ := loader.loadFromFile(context.Background(), path)
	writeFile(t, path, "package two\n")
	cached, _ := loader.loadFromFile(context.Background(), path)
	if cached != first {
		t.Error("second load bypassed the cache")
	}

	loader.ClearCache()
	fresh, _ := loader.loadFromFile(context.Background(), path)
	if fresh.Rego != "package two\n" {
		t.Errorf("cache not cleared, got %q", fresh.Rego)
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		content      string
		wantDesc     string
		wantSeverity Severity
	}{
		{"# One line\npackage x\n", "One line", SeverityWarning},
		{"# First\n# Second\n\npackage x\n# trailing\n", "First Second", SeverityWarning},
		{"# severity: critical\n# Blocks everything\npackage x\n", "Blocks everything", SeverityCritical},
		{"package x\n", "", SeverityWarning},
	}
	for _, tt := range tests {
		desc, sev := parseHeader(tt.content)
		if desc != tt.wantDesc || sev != tt.wantSeverity {
			t.Errorf("parseHeader(%q) = %q, %s; want %q, %s", tt.content, desc, sev, tt.wantDesc, tt.wantSeverity)
		}
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	loader.reloadDelay = 20 * time.Millisecond
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{dir}, func(p []Policy) error {
		reloaded <- p
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	writeFile(t, filepath.Join(dir, "b.rego"), "package b\n")

	select {
	case policies := <-reloaded:
		if len(policies) != 2 {
			t.Errorf("reload saw %d policies, want 2", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after a policy file was created")
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	path := filepath.Join(t.TempDir(), "items.yaml")
	writeFile(t, path, `name: yaml-items
description: Item grant must stay on
severity: critical
enabled: true
tags: [inventory]
rego: |
  package stattweaks.custom.yaml

  import rego.v1

  deny contains "disabled" if {
    not input.profile.inventory.enabled
  }
`)

	p, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("loadFromFile() error: %v", err)
	}
	if p.Name != "yaml-items" || p.Severity != SeverityCritical || len(p.Tags) != 1 {
		t.Errorf("policy = %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}
