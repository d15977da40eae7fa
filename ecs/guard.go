package ecs

// ReadGuard holds a storage's read lock until Release is called. It is the
// concrete type behind a query's Read[T] access specifier.
type ReadGuard[T any] struct {
	storage *Storage[T]
}

// Release drops the underlying lock. Safe to call at most once.
func (g *ReadGuard[T]) Release() {
	if g == nil {
		return
	}
	g.storage.ReadUnlock()
}

// Get returns a copy of index's value. Operates directly on the lock the
// guard already holds — Storage.Get itself takes s.mu.RLock(), and
// sync.RWMutex isn't reentrant, so routing through it here would deadlock
// any caller that also drives a query over this same guard.
func (g *ReadGuard[T]) Get(index uint32) (T, bool) { return g.storage.getLocked(index) }

// Contains reports membership, against the already-held lock.
func (g *ReadGuard[T]) Contains(index uint32) bool { return g.storage.containsLocked(index) }

// ForEach walks the guard's storage in dense order, against the already-
// held lock.
func (g *ReadGuard[T]) ForEach(fn func(index uint32, value *T)) { g.storage.forEachLocked(fn) }

// Membership returns the guard's storage's membership snapshot, against the
// already-held lock.
func (g *ReadGuard[T]) Membership() *Bitset { return g.storage.membershipLocked() }

// DenseEntities returns the guard's storage's dense-order entity indices,
// against the already-held lock.
func (g *ReadGuard[T]) DenseEntities() []uint32 { return g.storage.denseEntitiesLocked() }

// ChangedSince/AddedSince/RemovedSince expose the storage's change-
// detection predicates through the borrowed guard, against the already-
// held lock.
func (g *ReadGuard[T]) ChangedSince(index uint32, tick uint64) bool {
	return g.storage.changedSinceLocked(index, tick)
}
func (g *ReadGuard[T]) AddedSince(index uint32, tick uint64) bool {
	return g.storage.addedSinceLocked(index, tick)
}
func (g *ReadGuard[T]) RemovedSince(index uint32, tick uint64) bool {
	return g.storage.removedSinceLocked(index, tick)
}

// WriteGuard holds a storage's write lock until Release is called.
type WriteGuard[T any] struct {
	storage *Storage[T]
}

// Release drops the underlying lock.
func (g *WriteGuard[T]) Release() {
	if g == nil {
		return
	}
	g.storage.WriteUnlock()
}

// Get returns a copy of index's value. Operates directly on the lock the
// guard already holds for writing — see ReadGuard.Get.
func (g *WriteGuard[T]) Get(index uint32) (T, bool) { return g.storage.getLocked(index) }

// Mutate exposes index's value to fn, stamping ticks_changed at tick, against
// the already-held write lock.
func (g *WriteGuard[T]) Mutate(index uint32, tick uint64, fn func(*T)) bool {
	return g.storage.mutateLocked(index, tick, fn)
}

// Contains reports membership, against the already-held lock.
func (g *WriteGuard[T]) Contains(index uint32) bool { return g.storage.containsLocked(index) }

// ForEachTracked walks the guard's storage, stamping every visited row,
// against the already-held lock.
func (g *WriteGuard[T]) ForEachTracked(tick uint64, fn func(index uint32, value *T)) {
	g.storage.forEachTrackedLocked(tick, fn)
}

// Membership returns the guard's storage's membership snapshot, against the
// already-held lock.
func (g *WriteGuard[T]) Membership() *Bitset { return g.storage.membershipLocked() }

// DenseEntities returns the guard's storage's dense-order entity indices,
// against the already-held lock.
func (g *WriteGuard[T]) DenseEntities() []uint32 { return g.storage.denseEntitiesLocked() }
