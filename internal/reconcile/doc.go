// Package reconcile keeps the live object set in step with the scene files
// on disk.
//
// A pass moves through Scanning, Rebuilding and Swapping. Scanning finds
// the objects that transitively depend on a changed file. Rebuilding
// reloads the scene and resolves only those objects. Swapping publishes the
// successful ones in a single atomic swap and destroys what they replaced.
// Objects that fail keep their previous live state, so one bad edit does
// not tear down the rest of the scene.
//
// A Reconciler runs one pass at a time. Queue feeds it file changes,
// coalescing everything that arrives during a pass into the next one.
package reconcile
