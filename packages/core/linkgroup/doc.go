// Package linkgroup is the only mutation API for variable values, selected
// rows and link groups.
//
// Every operation reads the whole environment, applies the change to a
// working copy, re-checks the model invariants and writes the copy back with
// a single Put. A failed operation writes nothing, so callers never observe
// a partially linked group.
//
// Operations on the same environment are serialized by a per-environment
// mutex; different environments proceed independently.
package linkgroup
