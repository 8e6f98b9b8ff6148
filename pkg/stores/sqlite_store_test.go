package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestRun(t *testing.T, store *SQLiteStore, id string, started time.Time) *Run {
	t.Helper()

	run := &Run{
		ID:        id,
		Profile:   "default",
		World:     "testdata/world.yaml",
		Status:    RunStatusRunning,
		StartedAt: started,
	}
	run.PatchesTotal = 3
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func TestNewSQLiteStore(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected an error for an empty path")
	}

	store, err := NewSQLiteStore(Config{Path: MemoryPath, MaxOpenConns: 10})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	if store.cfg.MaxOpenConns != 1 {
		t.Errorf("in-memory store must use one connection, got %d", store.cfg.MaxOpenConns)
	}

	file, _ := NewSQLiteStore(Config{Path: "journal.db"})
	if file.cfg.MaxOpenConns != 4 || file.cfg.BusyTimeout != 5*time.Second {
		t.Errorf("defaults not applied: %+v", file.cfg)
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check before Init should fail")
	}
	if err := store.Migrate(ctx); err == nil {
		t.Error("Migrate before Init should fail")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// A second migration is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "events", "scan_records"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createTestRun(t, store, "run-001", started)

	got, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Status != RunStatusRunning || got.Profile != "default" || got.Metadata != "{}" {
		t.Errorf("unexpected run: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.CompletedAt != nil {
		t.Error("a running run has no completion time")
	}

	summary := RunSummary{
		FinalPhase:     "sampling",
		PatchesApplied: 3,
		PatchesTotal:   3,
		Refunds:        2,
		RefundTotal:    5.55,
	}
	if err := store.FinishRun(ctx, "run-001", RunStatusCompleted, summary, nil); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	got, err = store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Status != RunStatusCompleted || got.CompletedAt == nil {
		t.Errorf("run not finished: %+v", got)
	}
	if got.RunSummary != summary {
		t.Errorf("summary = %+v, want %+v", got.RunSummary, summary)
	}

	msg := "world file missing"
	if err := store.FinishRun(ctx, "run-001", RunStatusFailed, RunSummary{}, &msg); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}
	got, _ = store.GetRun(ctx, "run-001")
	if got.Error == nil || *got.Error != msg {
		t.Errorf("Error = %v, want %q", got.Error, msg)
	}
}

func TestRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
	if err := store.FinishRun(ctx, "missing", RunStatusCompleted, RunSummary{}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun() error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRun() error = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		createTestRun(t, store, id, base.Add(time.Duration(i)*time.Minute))
	}

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []string
	}{
		{name: "all newest first", limit: 0, want: []string{"run-c", "run-b", "run-a"}},
		{name: "limited", limit: 2, want: []string{"run-c", "run-b"}},
		{name: "offset", limit: 2, offset: 2, want: []string{"run-a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("ListRuns() error: %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(runs), len(tt.want))
			}
			for i, run := range runs {
				if run.ID != tt.want[i] {
					t.Errorf("runs[%d] = %s, want %s", i, run.ID, tt.want[i])
				}
			}
		})
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestRun(t, store, "run-001", time.Now())
	createTestRun(t, store, "run-002", time.Now())

	patch := "max_health"
	details := `{"previous":100,"current":140}`
	events := []*Event{
		{EventID: "e1", RunID: "run-001", Type: "phase_changed", Phase: "retrying", Level: EventLevelInfo, Message: "phase probing -> retrying"},
		{EventID: "e2", RunID: "run-001", Type: "patch_applied", Phase: "retrying", PatchID: &patch, Level: EventLevelInfo, Message: "patched", Value: 40, Details: &details},
		{EventID: "e3", RunID: "run-001", Type: "warning", Phase: "sampling", Level: EventLevelWarning, Message: "re-read failed"},
		{EventID: "e4", RunID: "run-002", Type: "refund", Phase: "sampling", Level: EventLevelInfo, Message: "refund", Value: 3},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent(%s) error: %v", e.EventID, err)
		}
		if e.Seq == 0 {
			t.Errorf("event %s got no sequence number", e.EventID)
		}
	}

	// Event IDs are unique.
	if err := store.AppendEvent(ctx, &Event{EventID: "e1", RunID: "run-001", Type: "x", Level: EventLevelInfo, Message: "dup"}); err == nil {
		t.Error("expected an error for a duplicate event id")
	}
	// Events must belong to a known run.
	if err := store.AppendEvent(ctx, &Event{EventID: "e9", RunID: "ghost", Type: "x", Level: EventLevelInfo, Message: "orphan"}); err == nil {
		t.Error("expected a foreign key error for an unknown run")
	}

	run1 := "run-001"
	typ := "patch_applied"
	warn := EventLevelWarning

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{name: "all", want: []string{"e1", "e2", "e3", "e4"}},
		{name: "by run", filter: EventFilter{RunID: &run1}, want: []string{"e1", "e2", "e3"}},
		{name: "by type", filter: EventFilter{Type: &typ}, want: []string{"e2"}},
		{name: "by level", filter: EventFilter{Level: &warn}, want: []string{"e3"}},
		{name: "paged", filter: EventFilter{RunID: &run1, Limit: 1, Offset: 1}, want: []string{"e2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListEvents(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListEvents() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.EventID != tt.want[i] {
					t.Errorf("events[%d] = %s, want %s", i, e.EventID, tt.want[i])
				}
			}
		})
	}

	got, _ := store.ListEvents(ctx, EventFilter{Type: &typ})
	if got[0].PatchID == nil || *got[0].PatchID != patch || got[0].Details == nil || got[0].Value != 40 {
		t.Errorf("event fields lost: %+v", got[0])
	}

	// Deleting a run removes its events.
	if err := store.DeleteRun(ctx, "run-001"); err != nil {
		t.Fatalf("DeleteRun() error: %v", err)
	}
	left, _ := store.ListEvents(ctx, EventFilter{})
	if len(left) != 1 || left[0].EventID != "e4" {
		t.Errorf("events after delete = %d", len(left))
	}
}

func TestScanRecords(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.AppendScanRecords(ctx, nil); err != nil {
		t.Fatalf("empty append should be a no-op: %v", err)
	}

	records := []*ScanRecord{
		{ScanID: "scan-1", Kind: ScanRecordModule, Module: "TeamSoda.Duckov.Core", Line: "[StatScanner] Module TeamSoda.Duckov.Core"},
		{ScanID: "scan-1", Kind: ScanRecordType, Group: "Health", TypeName: "Health", Line: "[StatScanner] Type hit => Health"},
		{ScanID: "scan-1", Kind: ScanRecordMember, Group: "Health", TypeName: "Health", Member: "MaxHealth", MemberKind: "FIELD", ValueType: "Single", Line: "[StatScanner]   FIELD Single MaxHealth"},
		{ScanID: "scan-2", Kind: ScanRecordModule, Module: "Other", Line: "[StatScanner] Module Other"},
	}
	if err := store.AppendScanRecords(ctx, records); err != nil {
		t.Fatalf("AppendScanRecords() error: %v", err)
	}

	got, err := store.ListScanRecords(ctx, "scan-1")
	if err != nil {
		t.Fatalf("ListScanRecords() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[2].Member != "MaxHealth" || got[2].ValueType != "Single" || got[2].Kind != ScanRecordMember {
		t.Errorf("member record = %+v", got[2])
	}
	if got[0].ID >= got[1].ID {
		t.Error("records must come back in write order")
	}

	// A bad row rolls back the whole batch.
	ghost := "ghost-run"
	bad := []*ScanRecord{
		{ScanID: "scan-3", Kind: ScanRecordModule, Line: "ok"},
		{ScanID: "scan-3", RunID: &ghost, Kind: ScanRecordModule, Line: "orphan"},
	}
	if err := store.AppendScanRecords(ctx, bad); err == nil {
		t.Fatal("expected a foreign key error")
	}
	if got, _ := store.ListScanRecords(ctx, "scan-3"); len(got) != 0 {
		t.Errorf("partial batch persisted: %d rows", len(got))
	}
}
