// Package liveset holds the live ResolvedObjectSet shared between the
// reconciler and every consumer of resolved objects.
//
// # Concurrency Model
//
// The store is the one piece of mutable state shared across goroutines.
// Readers take a read lock per lookup. The single writer takes the write
// lock only inside Swap, which replaces and removes a batch of entries in
// one step, so a reader observes either the whole old state or the whole
// new state of every id, never a mix.
//
// Entries are *scene.Resolved values and are never modified after they
// are published; a rebuild publishes a new value instead.
package liveset
