package ecs

import (
	"fmt"
	"reflect"
)

type triggerKind int

const (
	triggerAdd triggerKind = iota
	triggerInsert
	triggerRemove
)

type triggerEvent struct {
	kind      triggerKind
	component reflect.Type
	entity    Entity
}

type observerKey struct {
	kind      triggerKind
	component reflect.Type
}

// ObserverHandler is invoked with mutable world access once per triggered
// entity during FlushObservers.
type ObserverHandler func(w *World, e Entity)

// observerRegistry buffers typed (marker, entity) triggers enqueued by the
// normal insert/remove/despawn paths and dispatches them only when
// FlushObservers runs, per §4.9: storages never call a handler directly.
type observerRegistry struct {
	handlers map[observerKey][]ObserverHandler
	pending  []triggerEvent
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{handlers: make(map[observerKey][]ObserverHandler)}
}

func (w *World) enqueueTrigger(kind triggerKind, component reflect.Type, e Entity) {
	w.observerMu.Lock()
	defer w.observerMu.Unlock()
	w.observers.pending = append(w.observers.pending, triggerEvent{kind: kind, component: component, entity: e})
}

func (w *World) registerObserver(kind triggerKind, component reflect.Type, handler ObserverHandler) {
	w.observerMu.Lock()
	defer w.observerMu.Unlock()
	key := observerKey{kind: kind, component: component}
	w.observers.handlers[key] = append(w.observers.handlers[key], handler)
}

// maxObserverCascade bounds FlushObservers' drain loop: a handler-induced
// structural change enqueues new triggers, and real cascades terminate in
// a handful of iterations. 100 matches §4.9's overflow threshold.
const maxObserverCascade = 100

// FlushObservers drains the pending trigger buffer, dispatching each to
// its registered handlers. Handler-induced triggers are processed in
// subsequent iterations of this same call; exceeding maxObserverCascade
// iterations panics as a runaway-cascade guard.
func (w *World) FlushObservers() {
	for iteration := 0; ; iteration++ {
		w.observerMu.Lock()
		batch := w.observers.pending
		w.observers.pending = nil
		w.observerMu.Unlock()

		if len(batch) == 0 {
			return
		}
		if iteration >= maxObserverCascade {
			panic(fmt.Sprintf("ecs: observer cascade exceeded %d iterations", maxObserverCascade))
		}

		for _, ev := range batch {
			w.observerMu.Lock()
			handlers := append([]ObserverHandler(nil), w.observers.handlers[observerKey{kind: ev.kind, component: ev.component}]...)
			w.observerMu.Unlock()
			for _, h := range handlers {
				h(w, ev.entity)
			}
		}
	}
}

// OnAdd registers handler to run (during FlushObservers) for every
// first-time insertion of T.
func OnAdd[T any](w *World, handler ObserverHandler) {
	w.registerObserver(triggerAdd, componentKey[T](), handler)
}

// OnInsert registers handler to run for every insertion of T, first-time
// or replace.
func OnInsert[T any](w *World, handler ObserverHandler) {
	w.registerObserver(triggerInsert, componentKey[T](), handler)
}

// OnRemove registers handler to run when T leaves an entity, including
// during despawn. Handlers run during FlushObservers, so an entity removed
// by Despawn is no longer alive when its handler runs; the storage's own
// Hooks.OnRemove is the callback that still sees it alive.
func OnRemove[T any](w *World, handler ObserverHandler) {
	w.registerObserver(triggerRemove, componentKey[T](), handler)
}

// Triggers is the reactive-trigger resource registered by
// EnableAddTriggers: a one-frame-latency double-buffered batch view of
// every T added since the last UpdateTriggers call.
type Triggers[T any] struct {
	collecting []Entity
	readable   []Entity
}

// Readable returns the batch visible to systems this tick.
func (t *Triggers[T]) Readable() []Entity { return t.readable }

// EnableAddTriggers registers a Triggers[T] resource and an internal
// OnAdd[T] observer that appends into its collecting buffer, per §4.9.
func EnableAddTriggers[T any](w *World) {
	RegisterResource(w, &Triggers[T]{})
	OnAdd[T](w, func(w *World, e Entity) {
		ResMut(w, func(tr **Triggers[T]) {
			(*tr).collecting = append((*tr).collecting, e)
		})
	})
}

// UpdateTriggers swaps Triggers[T]'s collecting buffer into readable and
// clears collecting. It updates only the one type T; each type enabled
// through EnableAddTriggers needs its own call. The runner calls this at
// tick start, before systems observe Triggers[T].Readable().
func UpdateTriggers[T any](w *World) {
	ResMut(w, func(tr **Triggers[T]) {
		(*tr).readable = (*tr).collecting
		(*tr).collecting = nil
	})
}
