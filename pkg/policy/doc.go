// Package policy gates tuning profiles with Open Policy Agent.
//
// Every policy is a Rego module whose package defines a deny set. Entries
// are strings or objects with message, path and optional severity keys. The
// profile is available as input.profile in its JSON form, and the engine's
// limits as data.stattweaks.params.
//
// Built-in policies:
//
//   - bounded-deltas: patch deltas are positive and at most max_delta
//   - compensation-factor: the refund factor lies in [0, 1)
//   - schedule: the retry window is sane and at most max_deadline_seconds
//   - lookups: patches have a lookup path and reference defined entities
//   - item-modifiers: warns about buff item modifiers without effect
//
// Extra policies are loaded from .rego or .json files with Engine.LoadPolicies
// and kept current with Loader.Watch:
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, profile, &policy.Context{Operation: "run"})
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s\n", v.Path, v.Message)
//	    }
//	}
package policy
