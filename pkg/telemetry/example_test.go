package telemetry_test

import (
	"context"
	"fmt"
	"log"

	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/telemetry"
)

// Example_basicSetup shows telemetry initialization.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetryWithLogger(cfg, telemetry.NewNopLogger())
	if err != nil {
		log.Fatal(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	_ = ctx

	fmt.Println("telemetry ready")
	// Output: telemetry ready
}

// Example_eventFiltering subscribes to refunds only.
func Example_eventFiltering() {
	ep, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		log.Fatal(err)
	}

	ep.Subscribe(func(_ context.Context, e telemetry.Event) {
		fmt.Printf("%s %.2f\n", e.Type, e.Value)
	}, telemetry.FilterByType(engine.EventTypeRefund))

	ctx := context.Background()
	_ = ep.Publish(ctx, &engine.Event{Type: engine.EventTypeBaseline, Value: 100})
	_ = ep.Publish(ctx, &engine.Event{Type: engine.EventTypeRefund, Value: 3})
	_ = ep.Publish(ctx, &engine.Event{Type: engine.EventTypeRefund, Value: 2.55})
	// Output:
	// refund 3.00
	// refund 2.55
}

// Example_instrumentedOperation times an operation under a span.
func Example_instrumentedOperation() {
	tel, _ := telemetry.NewTelemetryWithLogger(telemetry.DefaultConfig(), telemetry.NewNopLogger())
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	op := telemetry.StartOperation(ctx, "diagnostics.scan")
	op.End(nil)

	fmt.Println(op.Timer.Duration() >= 0)
	// Output: true
}
