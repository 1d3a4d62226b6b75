// Package scene defines the format-agnostic contract between the object
// graph engine and whatever deserializes scene files.
//
// A Loader turns files into a Snapshot: the objects that were read, the
// pointer properties that still have to be bound (UnresolvedPointer) and the
// files each object depends on (FileLink). The engine never looks inside an
// object; everything it needs is either in the Snapshot or exposed through the
// small capability interfaces in this package (Binder, Cloner, Initializer,
// Destroyer).
//
// Concrete formats live in their own packages, such as hclscene.
package scene
