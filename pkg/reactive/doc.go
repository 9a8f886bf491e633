// Package reactive provides thread-safe observable state primitives.
//
// A Cell holds a single mutable value that any goroutine can read or
// write. Callbacks registered with OnChange run on dedicated monitor
// goroutines, never inline with the write that triggered them, so a
// subscriber can freely read the cell it observes.
//
// Derived values recompute from an explicit dependency list whenever any
// dependency announces a change. List is the same contract for an ordered
// collection. Registry retains reactive values that would otherwise be
// owned only by closures.
package reactive
