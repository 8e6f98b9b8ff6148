// Package telemetry wires logging, tracing, metrics and event fan-out for
// stattweaks.
//
// It combines four parts:
//
//  1. Logger wraps zerolog with console or JSON output and run, patch and
//     entity fields.
//  2. Tracer wraps an OpenTelemetry provider with stdout and OTLP gRPC
//     exporters.
//  3. Metrics is a Prometheus registry that implements engine.Observer.
//  4. EventPublisher implements engine.EventPublisher and fans runtime
//     events out to subscribers such as the run journal.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//	ctx = telemetry.WithRunContext(ctx, runID, profile.Name)
//	defer telemetry.EndRunContext(ctx, "completed", nil)
//
//	rt := engine.NewRuntime(opts, engine.Dependencies{
//	    Publisher: tel.Events,
//	    Observer:  tel.Metrics,
//	    Logger:    tel.Logger.Zerolog(),
//	})
//
// # Metrics
//
// All names carry the configured namespace (stattweaks by default):
//
//   - patch_attempts_total{patch,result}
//   - patches_applied_total{patch}
//   - refunds_total and refund_amount_total
//   - runtime_phase{phase}, 1 for the active phase
//   - tick_duration_seconds
//   - errors_by_class_total{class}
//   - item_grants_total{result}
//   - runs_started_total and runs_completed_total{status}
//
// Metrics.Serve exposes them over HTTP when MetricsConfig.ListenAddress is set.
//
// # Events
//
// Delivery is synchronous by default so subscribers observe events in tick
// order before Tick returns. EventsConfig.EnableAsync moves delivery to a
// background goroutine with a bounded queue; Publish then reports
// ErrBufferFull instead of blocking the tick.
package telemetry
