package query

import "github.com/NOT-REAL-GAMES/forgecore/ecs"

// itemSource is the read-or-write fetch surface both ecs.ReadGuard[T] and
// ecs.WriteGuard[T] satisfy structurally, letting Each2/Each3 accept
// either mutability for each component slot without a combinatorial
// Read/Write arity explosion.
type itemSource[T any] interface {
	Member
	Get(index uint32) (T, bool)
}

// Each1 matches entities present in a, yielding (entity index, value) in
// a's dense order.
func Each1[A any](w *ecs.World, includeDisabled bool, a itemSource[A], fn func(index uint32, av A)) {
	for _, idx := range Match(w, includeDisabled, a) {
		av, ok := a.Get(idx)
		if !ok {
			continue
		}
		fn(idx, av)
	}
}

// Each2 matches entities present in both a and b.
func Each2[A, B any](w *ecs.World, includeDisabled bool, a itemSource[A], b itemSource[B], fn func(index uint32, av A, bv B)) {
	for _, idx := range Match(w, includeDisabled, a, b) {
		av, ok := a.Get(idx)
		if !ok {
			continue
		}
		bv, ok := b.Get(idx)
		if !ok {
			continue
		}
		fn(idx, av, bv)
	}
}

// Each3 matches entities present in a, b, and c.
func Each3[A, B, C any](w *ecs.World, includeDisabled bool, a itemSource[A], b itemSource[B], c itemSource[C], fn func(index uint32, av A, bv B, cv C)) {
	for _, idx := range Match(w, includeDisabled, a, b, c) {
		av, ok := a.Get(idx)
		if !ok {
			continue
		}
		bv, ok := b.Get(idx)
		if !ok {
			continue
		}
		cv, ok := c.Get(idx)
		if !ok {
			continue
		}
		fn(idx, av, bv, cv)
	}
}
