// Package schedule implements the system container and scheduler from
// spec §4.7: explicit ordering edges with cycle detection, condition
// systems, exclusive systems, and both a single-threaded topological
// runner and a parallel dispatcher that respects declared access
// conflicts.
package schedule

import "reflect"

type accessKey struct {
	rtype       reflect.Type
	isComponent bool
}

// AccessSet is a system's declared (type, read-or-write) access footprint,
// used by the parallel runner to decide which ready systems may run
// concurrently (§4.7's "two systems with overlapping write sets, or a
// write ∩ read set, may not execute concurrently").
type AccessSet struct {
	entries map[accessKey]bool // true = write
}

// NewAccessSet returns an empty access set.
func NewAccessSet() *AccessSet {
	return &AccessSet{entries: make(map[accessKey]bool)}
}

func componentKeyOf[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

func (a *AccessSet) add(key accessKey, write bool) {
	if a.entries[key] {
		return // already a writer; cannot downgrade
	}
	a.entries[key] = write
}

// ReadsComponent declares read access to component type T.
func ReadsComponent[T any](a *AccessSet) *AccessSet {
	a.add(accessKey{rtype: componentKeyOf[T](), isComponent: true}, false)
	return a
}

// WritesComponent declares write access to component type T.
func WritesComponent[T any](a *AccessSet) *AccessSet {
	a.add(accessKey{rtype: componentKeyOf[T](), isComponent: true}, true)
	return a
}

// ReadsResource declares Res[T] access.
func ReadsResource[T any](a *AccessSet) *AccessSet {
	a.add(accessKey{rtype: componentKeyOf[T](), isComponent: false}, false)
	return a
}

// WritesResource declares ResMut[T] access.
func WritesResource[T any](a *AccessSet) *AccessSet {
	a.add(accessKey{rtype: componentKeyOf[T](), isComponent: false}, true)
	return a
}

// ConflictsWith reports whether a and b may not run concurrently: they
// share a key and at least one side holds it for writing.
func (a *AccessSet) ConflictsWith(b *AccessSet) bool {
	if a == nil || b == nil {
		return false
	}
	for k, aw := range a.entries {
		if bw, ok := b.entries[k]; ok && (aw || bw) {
			return true
		}
	}
	return false
}
