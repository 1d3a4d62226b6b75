// internal/proppath/doc.go

/*
Package proppath provides a structured representation of the location of a
property inside an object, based on the canonical format `path`.

The format is a dot-separated sequence of segments, where each segment may
carry an element index, e.g. `material.textures[2].sampler`.

Pointer records and bindings carry a Path so a single broken reference can be
reported precisely, down to the element of an array property.
*/
package proppath
