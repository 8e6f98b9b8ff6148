// Package sandbox builds simulated hosts for running the tuning runtime
// outside a game.
//
// A fixture is a YAML file describing loaded modules, objects with numeric
// attributes and references, registry singletons and scene objects with
// components. LoadWorld turns it into an objmodel.World plus a locate.Registry.
//
// A scenario is a Starlark script defining on_tick(t). It is called once per
// simulated frame and returns mutations that damage, heal, destroy or spawn
// objects:
//
//	def on_tick(t):
//	    if t.frame == 120:
//	        return [{"object": "health", "attribute": "Current", "add": -20}]
//	    return []
package sandbox
