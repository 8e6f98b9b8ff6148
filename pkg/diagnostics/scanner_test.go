package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/objmodel"
	"github.com/openfroyo/stattweaks/pkg/stores"
)

type recordingSink struct {
	records []*stores.ScanRecord
	err     error
}

func (s *recordingSink) AppendScanRecords(_ context.Context, records []*stores.ScanRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

type panickingHost struct {
	*objmodel.World
}

func newTestWorld() *objmodel.World {
	w := objmodel.NewWorld()
	w.AddModule(objmodel.Module{
		Name: "TeamSoda.Duckov.Core",
		Types: []objmodel.TypeInfo{
			{
				Name: "Health",
				Members: []objmodel.Member{
					{Name: "MaxHealth", Kind: objmodel.MemberField, ValueType: "Single"},
					{Name: "CurrentHealth", Kind: objmodel.MemberProperty, ValueType: "Single"},
					{Name: "OnDeath", Kind: objmodel.MemberEvent, ValueType: "Action"},
					{Name: "SetMaxHealth", Kind: objmodel.MemberMethod, ValueType: "Void", Params: []string{"Single"}},
					{Name: "Heal", Kind: objmodel.MemberMethod, ValueType: "Void", Params: []string{"Single"}},
				},
			},
			{
				Name:      "CharacterArmor",
				Namespace: "TeamSoda.Duckov",
				Members: []objmodel.Member{
					{Name: "HeadArmor", Kind: objmodel.MemberField, ValueType: "Single"},
					{Name: "Weight", Kind: objmodel.MemberField, ValueType: "Single"},
				},
			},
			{Name: "Inventory"},
		},
	})
	w.AddModule(objmodel.Module{Name: "UnityEngine.CoreModule"})
	return w
}

func testOptions(dir string) Options {
	return Options{
		Prefix:        DefaultPrefix,
		TargetModules: []string{"teamsoda.duckov.core", "ItemStatsSystem"},
		Groups: []Group{
			{Keyword: "Health", MemberTokens: []string{"Max", "Current", "Value", "Health"}},
			{Keyword: "Armor", MemberTokens: []string{"Head", "Body", "Armor", "Rating", "Value"}},
			{Keyword: "Damage", MemberTokens: []string{"Damage", "On", "Physical", "Type"}},
		},
		Dir: dir,
		Now: func() time.Time { return time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC) },
	}
}

func TestScannerRun(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	s := NewScanner(newTestWorld(), testOptions(dir), sink, zerolog.New(nil).Level(zerolog.Disabled))

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{
		"[StatScanner] Loaded module => TeamSoda.Duckov.Core",
		"[StatScanner] Type hit => Health",
		"[StatScanner]   FIELD Single MaxHealth",
		"[StatScanner]   PROP Single CurrentHealth",
		"[StatScanner]   METHOD Void SetMaxHealth(Single)",
		"[StatScanner] Type hit => TeamSoda.Duckov.CharacterArmor",
		"[StatScanner]   FIELD Single HeadArmor",
	}
	text := strings.Join(report.Lines, "\n")
	for _, line := range want {
		if !strings.Contains(text, line) {
			t.Errorf("report missing %q:\n%s", line, text)
		}
	}
	for _, absent := range []string{"OnDeath", "Heal(", "Weight", "UnityEngine", "Inventory"} {
		if strings.Contains(text, absent) {
			t.Errorf("report should not mention %s:\n%s", absent, text)
		}
	}

	wantPath := filepath.Join(dir, "StatScanner_20260301_090507.log")
	if report.Path != wantPath {
		t.Errorf("Path = %s, want %s", report.Path, wantPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read scan log: %v", err)
	}
	if string(data) != text+"\n" {
		t.Errorf("log file does not match report lines")
	}

	if len(sink.records) != len(report.Lines) {
		t.Fatalf("sink got %d records, want %d", len(sink.records), len(report.Lines))
	}
	var member *stores.ScanRecord
	for _, rec := range sink.records {
		if rec.ScanID != report.ScanID {
			t.Errorf("record scan id %s, want %s", rec.ScanID, report.ScanID)
		}
		if rec.Member == "MaxHealth" {
			member = rec
		}
	}
	if member == nil || member.MemberKind != "FIELD" || member.ValueType != "Single" || member.Group != "Health" {
		t.Errorf("member record = %+v", member)
	}
}

func TestScannerRunsOnce(t *testing.T) {
	sink := &recordingSink{}
	s := NewScanner(newTestWorld(), testOptions(""), sink, zerolog.New(nil).Level(zerolog.Disabled))

	first, _ := s.Run(context.Background())
	if first == nil || !s.Attempted() {
		t.Fatal("first Run() produced no report")
	}
	if first.Path != "" {
		t.Errorf("no dir configured but file written to %s", first.Path)
	}

	second, err := s.Run(context.Background())
	if second != nil || err != nil {
		t.Errorf("second Run() = %v, %v; want nil, nil", second, err)
	}
	if len(sink.records) != len(first.Lines) {
		t.Errorf("records journaled twice: %d", len(sink.records))
	}
}

func TestScannerFailuresAreNotFatal(t *testing.T) {
	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	sinkErr := errors.New("disk full")
	s := NewScanner(newTestWorld(), testOptions(blocker), &recordingSink{err: sinkErr}, zerolog.New(nil).Level(zerolog.Disabled))

	report, err := s.Run(context.Background())
	if report == nil || len(report.Lines) == 0 {
		t.Fatal("report must survive output failures")
	}
	if !errors.Is(err, sinkErr) {
		t.Errorf("error %v does not wrap sink failure", err)
	}
	if report.Path != "" {
		t.Errorf("Path = %s after failed write", report.Path)
	}
}

func (h panickingHost) Modules() []objmodel.Module {
	panic("assembly list unavailable")
}

func TestScannerHostPanic(t *testing.T) {
	s := NewScanner(panickingHost{World: newTestWorld()}, testOptions(""), nil, zerolog.New(nil).Level(zerolog.Disabled))

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	text := strings.Join(report.Lines, "\n")
	if !strings.Contains(text, "[StatScanner] Scan error: assembly list unavailable") {
		t.Errorf("missing scan error line:\n%s", text)
	}
	if strings.Contains(text, "Type hit") {
		t.Errorf("no types should be reported:\n%s", text)
	}
}

func TestMemberSummary(t *testing.T) {
	tests := []struct {
		member objmodel.Member
		want   string
	}{
		{objmodel.Member{Name: "MaxHealth", Kind: objmodel.MemberField, ValueType: "Single"}, "FIELD Single MaxHealth"},
		{objmodel.Member{Name: "Rating", Kind: objmodel.MemberProperty, ValueType: "Single"}, "PROP Single Rating"},
		{objmodel.Member{Name: "OnBeforeDamageApplied", Kind: objmodel.MemberEvent}, "EVENT ? OnBeforeDamageApplied"},
		{objmodel.Member{Name: "Apply", Kind: objmodel.MemberMethod, ValueType: "Boolean", Params: []string{"DamageInfo", "Single"}}, "METHOD Boolean Apply(DamageInfo,Single)"},
	}
	for _, tt := range tests {
		if got := MemberSummary(tt.member); got != tt.want {
			t.Errorf("MemberSummary() = %q, want %q", got, tt.want)
		}
	}
}

func TestLogFileName(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 59, 58, 0, time.UTC)
	if got := LogFileName("[StatScanner]", at); got != "StatScanner_20261231_235958.log" {
		t.Errorf("LogFileName() = %s", got)
	}
	if got := LogFileName("", at); got != "StatScanner_20261231_235958.log" {
		t.Errorf("LogFileName(empty) = %s", got)
	}
}
