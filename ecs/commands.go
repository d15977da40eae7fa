package ecs

import "sync"

// DeferredFn is a closure queued onto a CommandBuffer for later, exclusive
// application against the World.
type DeferredFn func(w *World)

// CommandBuffer is the resource systems use to queue structural changes
// (spawn, despawn, component insert/remove) they cannot perform directly
// while holding only their declared component/resource locks. It is
// itself a registered resource so the scheduler can fetch it the same way
// any other ResMut access works.
type CommandBuffer struct {
	mu      sync.Mutex
	pending []DeferredFn
}

// NewCommandBuffer returns an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Push enqueues fn for the next ApplyCommands call. Safe to call from any
// goroutine, including concurrently from multiple systems.
func (c *CommandBuffer) Push(fn DeferredFn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, fn)
}

// SpawnWith queues spawning a new entity and applying build against it.
func (c *CommandBuffer) SpawnWith(build func(w *World, e Entity)) {
	c.Push(func(w *World) {
		e := w.Spawn()
		build(w, e)
	})
}

// Despawn queues despawning e.
func (c *CommandBuffer) Despawn(e Entity) {
	c.Push(func(w *World) { w.Despawn(e) })
}

// ApplyCommands drains and runs every queued closure against w in
// enqueue order. The runner calls this at phase boundaries, before
// FlushObservers (§4.6, §4.9).
func (w *World) ApplyCommands() {
	var batch []DeferredFn
	ResMut(w, func(cb **CommandBuffer) {
		batch = (*cb).pending
		(*cb).pending = nil
	})
	for _, fn := range batch {
		fn(w)
	}
}
