// Package objgraph builds the dependency graph over scene objects and the
// files they reference.
//
// A Graph is built once from a snapshot and never mutated. Build finds
// strongly connected components with Tarjan's algorithm and orders the
// condensation by dependency depth, breaking ties by id, so identical input
// always yields the identical order. Cycles and edges to unknown targets are
// reported as diagnostics instead of failing the build.
package objgraph
