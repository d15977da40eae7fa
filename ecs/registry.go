package ecs

import "reflect"

// anyStorage is the type-erased face every *Storage[T] presents to World,
// used for despawn (removing a row from every storage an entity has
// without the caller naming each component type) and frame-boundary
// maintenance.
type anyStorage interface {
	removeIndex(w *World, index uint32, tick uint64) bool
	contains(index uint32) bool
	clearRemoved()
	typeLabel() string
}

// resourceCell is the type-erased face every *Resource[T] presents.
type resourceCell interface {
	isMainThreadOnly() bool
}

// componentID names a registered component type for panic messages and
// TypeId-sorted lock ordering. Go has no stable cross-process TypeId, so
// registration order is used instead — deterministic within one World and
// sufficient for the deadlock-freedom argument in §4.6 (every goroutine
// sorts by the same order).
type componentID struct {
	rtype reflect.Type
	order int
}

func componentKey[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
