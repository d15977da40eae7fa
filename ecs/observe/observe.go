// Package observe provides the user-facing surface over the deferred
// observer registry and reactive-trigger resources that live on
// ecs.World (§4.9). The registry itself is kept inside package ecs because
// it is wired directly into storage insert/remove/despawn paths; this
// package is the ergonomic entry point callers outside ecs are expected
// to use.
package observe

import "github.com/NOT-REAL-GAMES/forgecore/ecs"

// Handler runs during FlushObservers for each triggered entity.
type Handler = ecs.ObserverHandler

// Triggers is the one-frame-latency batch view of every T added since the
// last UpdateTriggers call.
type Triggers[T any] = ecs.Triggers[T]

// OnAdd registers handler for every first-time insertion of T.
func OnAdd[T any](w *ecs.World, handler Handler) { ecs.OnAdd[T](w, handler) }

// OnInsert registers handler for every insertion of T, first-time or
// replace.
func OnInsert[T any](w *ecs.World, handler Handler) { ecs.OnInsert[T](w, handler) }

// OnRemove registers handler for every removal of T, including during
// despawn.
func OnRemove[T any](w *ecs.World, handler Handler) { ecs.OnRemove[T](w, handler) }

// Flush drains the pending trigger buffer and dispatches it to registered
// handlers, cascading (capped) on handler-induced structural changes.
func Flush(w *ecs.World) { w.FlushObservers() }

// EnableAddTriggers registers a Triggers[T] resource fed by an internal
// OnAdd[T] observer.
func EnableAddTriggers[T any](w *ecs.World) { ecs.EnableAddTriggers[T](w) }

// Update swaps Triggers[T]'s collecting buffer into readable. Only T is
// updated; each enabled type needs its own call. The runner calls this at
// tick start.
func Update[T any](w *ecs.World) { ecs.UpdateTriggers[T](w) }
