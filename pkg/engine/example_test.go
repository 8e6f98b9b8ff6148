package engine_test

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/stattweaks/pkg/config"
	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/sandbox"
)

// printer prints phase changes and refunds.
type printer struct{}

func (printer) Publish(_ context.Context, e *engine.Event) error {
	switch e.Type {
	case engine.EventTypePhaseChanged:
		fmt.Println(e.Message)
	case engine.EventTypeRefund:
		fmt.Printf("refund %.2f\n", e.Value)
	}
	return nil
}

// Example_runtime drives the stock profile through a sandbox world: the
// player appears three seconds in, no damage hook is confirmed, so after the
// window closes the fallback refunds 15% of each hit.
func Example_runtime() {
	ctx := context.Background()

	fx, err := sandbox.LoadWorld("../sandbox/testdata/world.yaml")
	if err != nil {
		panic(err)
	}
	sc, err := sandbox.LoadScenario("../sandbox/testdata/scenario.star", fx, zerolog.Nop())
	if err != nil {
		panic(err)
	}

	profile := config.DefaultProfile()
	opts := profile.EngineOptions()
	rt := engine.NewRuntime(opts, engine.Dependencies{
		Locator:   locate.New(fx.World, fx.Registry, zerolog.Nop(), profile.Entities...),
		Probe:     engine.NewEventProbe(fx.World, opts.Probe, zerolog.Nop(), nil),
		Publisher: printer{},
		Logger:    zerolog.Nop(),
	})

	sim := sandbox.NewSimulation(fx, sc, time.Unix(0, 0), time.Second)
	phase := rt.Phase()
	for sim.Frame() <= 24 {
		now, err := sim.Advance(ctx, string(phase))
		if err != nil {
			panic(err)
		}
		phase = rt.Tick(ctx, now)
	}

	snap := rt.Snapshot()
	fmt.Printf("applied=%t refunds=%d\n", snap.AllApplied, snap.Refunds)

	// Output:
	// probing -> retrying
	// retrying -> armed
	// armed -> sampling
	// refund 3.00
	// refund 2.55
	// applied=true refunds=2
}
