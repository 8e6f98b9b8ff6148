package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunStatus represents the status of a tuning run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run is one execution of the runtime against a host.
type Run struct {
	ID      string    `json:"id"`
	Profile string    `json:"profile"`
	World   string    `json:"world"`
	Status  RunStatus `json:"status"`

	RunSummary

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RunSummary is the outcome recorded when a run ends.
type RunSummary struct {
	FinalPhase     string  `json:"final_phase"`
	PatchesApplied int     `json:"patches_applied"`
	PatchesTotal   int     `json:"patches_total"`
	Refunds        int     `json:"refunds"`
	RefundTotal    float64 `json:"refund_total"`
}

// Event is an append-only runtime event.
type Event struct {
	Seq       int64      `json:"seq"`
	EventID   string     `json:"event_id"`
	RunID     string     `json:"run_id"`
	Type      string     `json:"type"`
	Phase     string     `json:"phase"`
	PatchID   *string    `json:"patch_id,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// EventFilter narrows ListEvents. Nil fields match everything.
type EventFilter struct {
	RunID  *string
	Type   *string
	Level  *EventLevel
	Limit  int
	Offset int
}

// ScanRecordKind says what a scan row describes.
type ScanRecordKind string

const (
	ScanRecordModule ScanRecordKind = "module"
	ScanRecordType   ScanRecordKind = "type"
	ScanRecordMember ScanRecordKind = "member"
)

// ScanRecord is one line of a diagnostic scan.
type ScanRecord struct {
	ID         int64          `json:"id"`
	ScanID     string         `json:"scan_id"`
	RunID      *string        `json:"run_id,omitempty"`
	Kind       ScanRecordKind `json:"kind"`
	Group      string         `json:"group"`
	Module     string         `json:"module"`
	TypeName   string         `json:"type_name"`
	Member     string         `json:"member"`
	MemberKind string         `json:"member_kind"`
	ValueType  string         `json:"value_type"`
	Line       string         `json:"line"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store defines the interface for the run journal
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, summary RunSummary, errMsg *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error)

	// Scan operations
	AppendScanRecords(ctx context.Context, records []*ScanRecord) error
	ListScanRecords(ctx context.Context, scanID string) ([]*ScanRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
