// Package engine applies bounded, idempotent stat patches to a live host
// object graph and falls back to a polling compensation when no damage
// interception point can be confirmed.
//
// # Overview
//
// The engine is driven by a single-threaded tick loop. Every call to
// Runtime.Tick advances an explicit state machine:
//
//  1. Probing - before the first tick; the first tick fixes an absolute deadline
//  2. Retrying - unapplied patches are attempted every RetryInterval while now < deadline
//  3. Armed - the window closed without a confirmed hook
//  4. Sampling - the Compensator runs on every tick
//
// When the HookProbe confirms a hook during the window, the runtime moves to
// Hooked instead and the compensation fallback is never enabled. At most one
// correction mechanism is active at any time.
//
// # Patches
//
// A PatchSpec names an entity, a delta and the ordered lookups used to find
// the attribute:
//
//   - PatchKindAdditive: the entity's Candidate Name List, then its attribute chain
//   - PatchKindMaxBoost: the same two paths, then the max candidates on a
//     separate component; afterwards the component's current quantity is
//     raised to min(current+delta, max)
//
// A PatchRecord is monotone: once Applied it is never attempted again and is
// never rolled back, so repeated ticks cannot stack a delta.
//
// # Compensation
//
// The Compensator remembers the last observed current quantity. On a
// decrease it refunds decrease*Factor, re-reads and records the result as the
// new baseline. Samples where current or max are unreadable or non-positive
// are skipped. The refund cannot tell damage from other decreases.
//
// # Error Classification
//
// Failures are classified, recovered locally and logged at most once per
// class and component:
//
//   - NotFound: no candidate, chain or entity resolved
//   - TypeMismatch: a member exists but is not numeric or is read-only
//   - Unreachable: a cached target was destroyed and is located again
//   - ProbeRisk: an interception candidate was seen but not attached
//   - Internal: a host panic was recovered
//
// # Usage Example
//
//	loc := locate.New(world, registry, logger, playerEntity, healthEntity)
//	rt := engine.NewRuntime(opts, engine.Dependencies{
//	    Locator: loc,
//	    Probe:   engine.NewEventProbe(world, opts.Probe, logger, nil),
//	    Logger:  logger,
//	})
//	for now := range ticker.C {
//	    rt.Tick(ctx, now)
//	}
package engine
