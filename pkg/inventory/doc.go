// Package inventory grants the stat buff item to the player.
//
// Hosts expose two capabilities: a Catalog that accepts dynamically built item
// definitions and a Receiver (usually the player's inventory) that accepts
// item instances. The Granter registers the item once and then retries the
// grant on a fixed schedule until it succeeds or its attempts run out.
package inventory
