package ecs

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// DisabledMarker is the built-in component that removes an entity from
// every filtered query while leaving it alive and addressable through the
// *_unfiltered family and through direct Read[DisabledMarker]/
// Write[DisabledMarker] access, per §4.6.
type DisabledMarker struct{}

// World owns every entity, component storage, resource, and the process-
// wide tick counter. A World is safe for concurrent use: structural
// mutation (spawn/despawn/register) takes the world lock, while component
// reads/writes go through each storage's own lock.
type World struct {
	mu sync.Mutex

	entities *entityAllocator

	storageOrder []reflect.Type
	storages     map[reflect.Type]anyStorage
	nextOrder    int

	resources map[reflect.Type]resourceCell

	tick uint64

	disabled Bitset

	observerMu sync.Mutex
	observers  *observerRegistry

	cloneMu     sync.Mutex
	cloneThunks map[reflect.Type]func(w *World, src, dst Entity)
}

// NewWorld constructs an empty world with its CommandBuffer resource
// already registered.
func NewWorld() *World {
	w := &World{
		entities:    newEntityAllocator(),
		storages:    make(map[reflect.Type]anyStorage),
		resources:   make(map[reflect.Type]resourceCell),
		observers:   newObserverRegistry(),
		cloneThunks: make(map[reflect.Type]func(w *World, src, dst Entity)),
	}
	RegisterResource(w, NewCommandBuffer())
	return w
}

// Tick returns the current process-wide tick counter.
func (w *World) Tick() uint64 { return atomic.LoadUint64(&w.tick) }

// AdvanceTick bumps and returns the new tick, called by the runner once
// per frame before systems run.
func (w *World) AdvanceTick() uint64 { return atomic.AddUint64(&w.tick, 1) }

func (w *World) entityAt(index uint32) Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	if int(index) >= len(w.entities.generations) {
		return Entity{Index: index}
	}
	return Entity{Index: index, Generation: w.entities.generations[index]}
}

// IsAlive reports whether e refers to a currently live entity.
func (w *World) IsAlive(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities.isAlive(e)
}

// Spawn allocates a new entity with no components.
func (w *World) Spawn() Entity {
	w.mu.Lock()
	e := w.entities.spawn()
	w.mu.Unlock()
	return e
}

// Despawn removes e and every component it carries, firing each storage's
// OnRemove hook first, enqueueing OnRemove observer triggers, then
// deallocating the index (§4.6). Returns false if e was already dead.
func (w *World) Despawn(e Entity) bool {
	w.mu.Lock()
	if !w.entities.isAlive(e) {
		w.mu.Unlock()
		return false
	}
	storages := make([]anyStorage, len(w.storageOrder))
	types := make([]reflect.Type, len(w.storageOrder))
	for i, t := range w.storageOrder {
		storages[i] = w.storages[t]
		types[i] = t
	}
	w.mu.Unlock()

	tick := w.Tick()
	for i, s := range storages {
		if s.contains(e.Index) {
			s.removeIndex(w, e.Index, tick)
			w.enqueueTrigger(triggerRemove, types[i], e)
		}
	}

	w.mu.Lock()
	ok := w.entities.despawn(e)
	w.disabled.Clear(e.Index)
	w.mu.Unlock()
	return ok
}

// RegisterComponent allocates T's storage if absent and returns it, so
// callers that only need the storage handle (for hooks or requirements)
// never have to thread a *World through their setup code.
func RegisterComponent[T any](w *World) *Storage[T] {
	key := componentKey[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.storages[key]; ok {
		return existing.(*Storage[T])
	}
	s := NewStorage[T](typeName(key))
	w.storages[key] = s
	w.storageOrder = append(w.storageOrder, key)
	w.nextOrder++
	return s
}

func storageFor[T any](w *World) (*Storage[T], bool) {
	key := componentKey[T]()
	w.mu.Lock()
	s, ok := w.storages[key]
	w.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.(*Storage[T]), true
}

// RegisterRequired arranges for R to be auto-inserted (via makeDefault)
// the first time T is added to an entity that doesn't already have R.
// Transitivity is automatic: R's own storage runs its own requirements
// when makeDefault's Insert call fires it, per §4.5.
func RegisterRequired[T, R any](w *World, makeDefault func() R) {
	RegisterComponent[R](w)
	ts := RegisterComponent[T](w)
	ts.AddRequired(func(w *World, e Entity) {
		if rs, ok := storageFor[R](w); ok && !rs.Contains(e.Index) {
			Insert(w, e, makeDefault())
		}
	})
}

// Insert adds or replaces e's T component at the current tick.
func Insert[T any](w *World, e Entity, value T) {
	InsertTracked(w, e, value, w.Tick())
}

// InsertTracked behaves like Insert but stamps an explicit tick, used by
// batch-insert paths that want every row in the batch to share one tick.
func InsertTracked[T any](w *World, e Entity, value T, tick uint64) {
	if !w.IsAlive(e) {
		panic(fmt.Sprintf("ecs: insert on dead entity %s", e))
	}
	s := RegisterComponent[T](w)
	_, existed := s.Insert(w, e.Index, value, tick)
	if _, isDisabledType := any((*T)(nil)).(*DisabledMarker); isDisabledType {
		w.SetDisabled(e, true)
	}
	if existed {
		w.enqueueTrigger(triggerInsert, componentKey[T](), e)
	} else {
		w.enqueueTrigger(triggerAdd, componentKey[T](), e)
		w.enqueueTrigger(triggerInsert, componentKey[T](), e)
	}
}

// InsertBatch inserts the same component set across many entities in one
// tick, so change-detecting queries see them as one batch.
func InsertBatch[T any](w *World, entities []Entity, values []T) {
	InsertBatchTracked(w, entities, values, w.Tick())
}

// InsertBatchTracked is InsertBatch with an explicit shared tick.
func InsertBatchTracked[T any](w *World, entities []Entity, values []T, tick uint64) {
	n := len(entities)
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		InsertTracked(w, entities[i], values[i], tick)
	}
}

// Remove drops e's T component, returning it if present.
func Remove[T any](w *World, e Entity) (T, bool) {
	s, ok := storageFor[T](w)
	if !ok {
		var zero T
		return zero, false
	}
	v, removed := s.Remove(w, e.Index, w.Tick())
	if removed {
		if _, isDisabledType := any((*T)(nil)).(*DisabledMarker); isDisabledType {
			w.SetDisabled(e, false)
		}
		w.enqueueTrigger(triggerRemove, componentKey[T](), e)
	}
	return v, removed
}

// Get returns a copy of e's T component, or the zero value and false. It
// respects the disabled-entity filter: a disabled entity's components are
// invisible to Get unless T is DisabledMarker itself (§4.6).
func Get[T any](w *World, e Entity) (T, bool) {
	if _, isDisabledType := any((*T)(nil)).(*DisabledMarker); !isDisabledType && w.isDisabled(e.Index) {
		var zero T
		return zero, false
	}
	s, ok := storageFor[T](w)
	if !ok {
		var zero T
		return zero, false
	}
	return s.Get(e.Index)
}

// GetUnfiltered bypasses the disabled-entity filter.
func GetUnfiltered[T any](w *World, e Entity) (T, bool) {
	s, ok := storageFor[T](w)
	if !ok {
		var zero T
		return zero, false
	}
	return s.Get(e.Index)
}

// DisabledSnapshot returns a copy of the world's disabled-entity bitset,
// used by ecs/query to filter inner-join results.
func (w *World) DisabledSnapshot() *Bitset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled.Clone()
}

func (w *World) isDisabled(index uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled.Test(index)
}

// SetDisabled toggles the DisabledMarker bookkeeping used by the query
// filter. Prefer Insert[DisabledMarker]/Remove[DisabledMarker], which call
// this automatically; exposed directly for the runner's bulk
// disable/enable operations.
func (w *World) SetDisabled(e Entity, disabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if disabled {
		w.disabled.Set(e.Index)
	} else {
		w.disabled.Clear(e.Index)
	}
}

// Read acquires T's storage lock for reading with immediate-conflict
// detection: it panics, naming T, if the lock is already held for writing.
func Read[T any](w *World) *ReadGuard[T] {
	s := RegisterComponent[T](w)
	if !s.TryReadLock() {
		panic(fmt.Sprintf("ecs: Read[%s] conflicts with an outstanding writer", typeName(componentKey[T]())))
	}
	return &ReadGuard[T]{storage: s}
}

// Write acquires T's storage lock for writing with immediate-conflict
// detection.
func Write[T any](w *World) *WriteGuard[T] {
	s := RegisterComponent[T](w)
	if !s.TryWriteLock() {
		panic(fmt.Sprintf("ecs: Write[%s] conflicts with an outstanding reader or writer", typeName(componentKey[T]())))
	}
	return &WriteGuard[T]{storage: s}
}

// TryRead is the non-panicking form used by optional query access
// specifiers: returns nil if T was never registered.
func TryRead[T any](w *World) *ReadGuard[T] {
	s, ok := storageFor[T](w)
	if !ok || !s.TryReadLock() {
		return nil
	}
	return &ReadGuard[T]{storage: s}
}

// TryWrite is TryRead's write counterpart.
func TryWrite[T any](w *World) *WriteGuard[T] {
	s, ok := storageFor[T](w)
	if !ok || !s.TryWriteLock() {
		return nil
	}
	return &WriteGuard[T]{storage: s}
}

// RegisterResource installs a Send-Sync resource. Registering the same
// type twice replaces the previous instance.
func RegisterResource[T any](w *World, value T) {
	key := componentKey[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resources[key] = newResource(value, false)
}

// RegisterMainThreadResource installs a resource flagged main-thread-only,
// for access through MainThreadRes/MainThreadResMut, which take a
// MainThreadGuard. Res/ResMut do not check the flag and hand the resource
// out without a guard.
func RegisterMainThreadResource[T any](w *World, value T) {
	key := componentKey[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resources[key] = newResource(value, true)
}

func resourceFor[T any](w *World) (*Resource[T], bool) {
	key := componentKey[T]()
	w.mu.Lock()
	r, ok := w.resources[key]
	w.mu.Unlock()
	if !ok {
		return nil, false
	}
	return r.(*Resource[T]), true
}

// Res runs fn with a read lock on resource T.
func Res[T any](w *World, fn func(*T)) {
	r, ok := resourceFor[T](w)
	if !ok {
		panic(fmt.Sprintf("ecs: resource %s not registered", typeName(componentKey[T]())))
	}
	r.Read(fn)
}

// ResMut runs fn with a write lock on resource T.
func ResMut[T any](w *World, fn func(*T)) {
	r, ok := resourceFor[T](w)
	if !ok {
		panic(fmt.Sprintf("ecs: resource %s not registered", typeName(componentKey[T]())))
	}
	r.Write(fn)
}

// AssertMainThread returns a token proving the caller is the goroutine
// that constructed w, for main-thread resource access. Go cannot verify
// OS-thread affinity the way the original engine's type system can; this
// is a cooperative convention, not an enforced guarantee (see DESIGN.md).
func (w *World) AssertMainThread() MainThreadGuard {
	return MainThreadGuard{world: w}
}

// MainThreadRes runs fn with a read lock on a main-thread-only resource.
// Panics if g was not obtained from this World.
func MainThreadRes[T any](w *World, g MainThreadGuard, fn func(*T)) {
	if g.world != w {
		panic("ecs: MainThreadGuard from a different World")
	}
	Res[T](w, fn)
}

// MainThreadResMut is MainThreadRes's write counterpart.
func MainThreadResMut[T any](w *World, g MainThreadGuard, fn func(*T)) {
	if g.world != w {
		panic("ecs: MainThreadGuard from a different World")
	}
	ResMut[T](w, fn)
}

// EnableClone registers a cloning thunk for T, used by CloneEntity and
// CloneEntityTree.
func EnableClone[T any](w *World) {
	key := componentKey[T]()
	w.cloneMu.Lock()
	defer w.cloneMu.Unlock()
	w.cloneThunks[key] = func(w *World, src, dst Entity) {
		if v, ok := Get[T](w, src); ok {
			Insert(w, dst, v)
		}
	}
}

// CloneEntity spawns a new entity and copies every clone-enabled component
// from src onto it.
func (w *World) CloneEntity(src Entity) Entity {
	dst := w.Spawn()
	w.cloneMu.Lock()
	thunks := make([]func(w *World, src, dst Entity), 0, len(w.cloneThunks))
	for _, t := range w.cloneThunks {
		thunks = append(thunks, t)
	}
	w.cloneMu.Unlock()
	for _, t := range thunks {
		t(w, src, dst)
	}
	return dst
}

// ChildrenComponent is the relation component CloneEntityTree walks
// breadth-first. A real application is expected to register its own
// Children type and rely on EntityRemapper to fix up references; this one
// is provided so CloneEntityTree has something concrete to traverse.
type ChildrenComponent struct {
	Entities []Entity
}

// EntityRemapper maps old entity ids to their clones, used by
// CloneEntityTree callers that need to fix up references embedded inside
// cloned components (the engine itself does not know which fields hold
// entity references, so this is left to the caller).
type EntityRemapper struct {
	old2new map[Entity]Entity
}

// Lookup returns the clone of old, or old unchanged if it falls outside
// the cloned subtree.
func (r *EntityRemapper) Lookup(old Entity) Entity {
	if r == nil {
		return old
	}
	if n, ok := r.old2new[old]; ok {
		return n
	}
	return old
}

// CloneEntityTree breadth-first clones root and every entity reachable
// through ChildrenComponent, returning the new root and a remapper so the
// caller can fix up any entity references embedded in cloned components.
func (w *World) CloneEntityTree(root Entity) (Entity, *EntityRemapper) {
	remap := &EntityRemapper{old2new: make(map[Entity]Entity)}
	queue := []Entity{root}
	for len(queue) > 0 {
		old := queue[0]
		queue = queue[1:]
		if _, done := remap.old2new[old]; done {
			continue
		}
		remap.old2new[old] = w.CloneEntity(old)
		if children, ok := Get[ChildrenComponent](w, old); ok {
			queue = append(queue, children.Entities...)
		}
	}
	return remap.old2new[root], remap
}

// sortedOrder returns the component types among keys in this world's
// registration order, the TypeId-sorted path §4.6 requires for multi-lock
// acquisition.
func (w *World) sortedOrder(keys []reflect.Type) []reflect.Type {
	w.mu.Lock()
	order := make(map[reflect.Type]int, len(w.storageOrder))
	for i, t := range w.storageOrder {
		order[t] = i
	}
	w.mu.Unlock()
	out := append([]reflect.Type(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// ClearAllRemovalLogs drains every registered storage's removal journal,
// the application-called frame-start maintenance step in §4.5.
func (w *World) ClearAllRemovalLogs() {
	w.mu.Lock()
	storages := make([]anyStorage, len(w.storageOrder))
	for i, t := range w.storageOrder {
		storages[i] = w.storages[t]
	}
	w.mu.Unlock()
	for _, s := range storages {
		s.clearRemoved()
	}
}
