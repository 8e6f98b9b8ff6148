package commands

import (
	"context"
	"encoding/json"

	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/stores"
	"github.com/openfroyo/stattweaks/pkg/telemetry"
)

// journalEvents appends every published event to the run journal.
func journalEvents(tel *telemetry.Telemetry, store stores.Store) {
	logger := tel.Logger.NewComponentLogger("journal")

	tel.Events.Subscribe(func(ctx context.Context, e telemetry.Event) {
		l := logger
		if e.PatchID != "" {
			l = l.WithPatchID(e.PatchID)
		}
		rec, err := toStoreEvent(e)
		if err != nil {
			l.WithError(err).Warn("Failed to encode event details")
			return
		}
		// The run may be shutting down; the journal still gets the event.
		if err := store.AppendEvent(context.WithoutCancel(ctx), rec); err != nil {
			l.WithError(err).Warnf("Failed to journal %s event", e.Type)
		}
	}, nil)
}

func toStoreEvent(e telemetry.Event) (*stores.Event, error) {
	rec := &stores.Event{
		EventID:   e.ID,
		RunID:     e.RunID,
		Type:      string(e.Type),
		Phase:     string(e.Phase),
		Level:     stores.EventLevel(e.Level),
		Message:   e.Message,
		Value:     e.Value,
		Timestamp: e.Timestamp,
	}
	if e.PatchID != "" {
		patchID := e.PatchID
		rec.PatchID = &patchID
	}
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		details := string(data)
		rec.Details = &details
	}
	return rec, nil
}

// summaryOf condenses a runtime snapshot for the journal.
func summaryOf(snap engine.Snapshot) stores.RunSummary {
	applied := 0
	for _, r := range snap.Records {
		if r.Applied {
			applied++
		}
	}
	return stores.RunSummary{
		FinalPhase:     string(snap.Phase),
		PatchesApplied: applied,
		PatchesTotal:   len(snap.Records),
		Refunds:        snap.Refunds,
		RefundTotal:    snap.RefundTotal,
	}
}
