// Package gpu holds the process-wide resource-lifetime primitives shared by
// the render-graph compiler and both backend recorders: deferred destruction
// of GPU handles across frames-in-flight.
package gpu

import (
	"log"
	"sync"
)

// Disposable is anything a retirement bucket can release. Buffers, images,
// image views, samplers, and fences all implement it by calling their own
// vk/wgpu destroy function.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a plain closure (the common case: a backend resource
// destructor already bound to its device and handle) to Disposable.
type DisposeFunc func()

func (f DisposeFunc) Dispose() { f() }

// DeferredDestructor holds MAX_FRAMES_IN_FLIGHT retirement buckets. Resources
// do not release their GPU handles when the last reference drops; callers
// enqueue them into the current slot instead, and they are only actually
// freed once AdvanceFrame has rotated past that slot — by which point the
// GPU work that used them is known to have completed.
//
// Safe for concurrent use: Retire may be called from any goroutine recording
// a pass; AdvanceFrame and FlushAll are expected to be called once per frame
// (resp. once at shutdown) from the frame-orchestration goroutine.
type DeferredDestructor struct {
	mu       sync.Mutex
	buckets  [][]Disposable
	current  int
	disposed uint64
}

// NewDeferredDestructor allocates framesInFlight retirement buckets. Typical
// values are 2 or 3; the zero value is not usable.
func NewDeferredDestructor(framesInFlight int) *DeferredDestructor {
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	return &DeferredDestructor{
		buckets: make([][]Disposable, framesInFlight),
	}
}

// Retire enqueues a resource into the current slot's bucket. It is released
// no sooner than the next time AdvanceFrame rotates back to this slot.
func (d *DeferredDestructor) Retire(res Disposable) {
	if res == nil {
		return
	}
	d.mu.Lock()
	d.buckets[d.current] = append(d.buckets[d.current], res)
	d.mu.Unlock()
}

// RetireFunc is a convenience wrapper for Retire(DisposeFunc(fn)).
func (d *DeferredDestructor) RetireFunc(fn func()) {
	d.Retire(DisposeFunc(fn))
}

// AdvanceFrame rotates the current slot forward and drains the slot now
// selected. The caller must have already waited on that slot's frame fence —
// calling this before the fence signals is undefined behavior, since the
// resources being drained may still be read by in-flight GPU work.
func (d *DeferredDestructor) AdvanceFrame() {
	d.mu.Lock()
	d.current = (d.current + 1) % len(d.buckets)
	pending := d.buckets[d.current]
	d.buckets[d.current] = nil
	d.mu.Unlock()

	d.drain(pending)
}

// FlushAll drains every bucket, including the current one. Call once after
// device-wait-idle, on backend teardown.
func (d *DeferredDestructor) FlushAll() {
	d.mu.Lock()
	all := d.buckets
	d.buckets = make([][]Disposable, len(all))
	d.mu.Unlock()

	for _, bucket := range all {
		d.drain(bucket)
	}
}

// Pending reports how many resources are queued for release across all
// buckets, for diagnostics.
func (d *DeferredDestructor) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.buckets {
		n += len(b)
	}
	return n
}

func (d *DeferredDestructor) drain(bucket []Disposable) {
	if len(bucket) == 0 {
		return
	}
	for _, res := range bucket {
		res.Dispose()
	}
	d.mu.Lock()
	d.disposed += uint64(len(bucket))
	total := d.disposed
	d.mu.Unlock()
	if total%4096 < uint64(len(bucket)) {
		log.Printf("gpu: deferred destructor has released %d resources total", total)
	}
}
