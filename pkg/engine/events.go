package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// emitter stamps and forwards runtime events. It carries the current phase
// so components that do not own the state machine can still tag events.
type emitter struct {
	publisher EventPublisher
	logger    zerolog.Logger
	phase     Phase
}

func (e *emitter) emit(
	ctx context.Context,
	now time.Time,
	eventType EventType,
	patchID, message string,
	value float64,
	details map[string]interface{},
) {
	if e == nil || e.publisher == nil {
		return
	}

	event := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: now,
		Phase:     e.phase,
		PatchID:   patchID,
		Message:   message,
		Value:     value,
		Details:   details,
		Level:     eventType.Severity(),
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
