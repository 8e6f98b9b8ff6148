// Package locate finds the live object that plays a conceptual role such as
// "player" or "health" in a host object graph.
//
// An Entity names the role and lists the declared type names, scene tags and
// scene names that may identify it. A Locator resolves the declared type,
// then tries, in order:
//
//  1. the explicit singleton Registry (by entity name, then by type)
//  2. a scan of live instances of the type
//  3. the scene object carrying one of the entity's tags or names, and its component of the type
//  4. every scene object that exposes a component of the type
//
// The first success wins. The result is cached per entity and re-validated on
// every use; a cached object the host has destroyed is dropped and the entity
// is located again.
package locate
