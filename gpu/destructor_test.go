package gpu

import "testing"

func TestAdvanceFrameDrainsRotatedSlot(t *testing.T) {
	d := NewDeferredDestructor(2)

	var released []string
	mark := func(name string) func() {
		return func() { released = append(released, name) }
	}

	d.RetireFunc(mark("slot0-a"))
	d.AdvanceFrame() // rotates to slot1, drains slot1 (empty)
	if len(released) != 0 {
		t.Fatalf("expected nothing released yet, got %v", released)
	}

	d.RetireFunc(mark("slot1-a"))
	d.AdvanceFrame() // rotates back to slot0, drains slot0 -> slot0-a released
	if len(released) != 1 || released[0] != "slot0-a" {
		t.Fatalf("expected [slot0-a] released, got %v", released)
	}

	d.AdvanceFrame() // rotates to slot1, drains slot1 -> slot1-a released
	if len(released) != 2 || released[1] != "slot1-a" {
		t.Fatalf("expected slot1-a released second, got %v", released)
	}
}

func TestFlushAllDrainsEveryBucket(t *testing.T) {
	d := NewDeferredDestructor(3)

	count := 0
	inc := DisposeFunc(func() { count++ })

	d.Retire(inc)
	d.AdvanceFrame()
	d.Retire(inc)
	d.AdvanceFrame()
	d.Retire(inc)

	if d.Pending() != 3 {
		t.Fatalf("expected 3 pending across buckets, got %d", d.Pending())
	}

	d.FlushAll()
	if count != 3 {
		t.Fatalf("expected all 3 disposables released, got %d", count)
	}
	if d.Pending() != 0 {
		t.Fatalf("expected 0 pending after flush, got %d", d.Pending())
	}
}

func TestRetireNilIsNoop(t *testing.T) {
	d := NewDeferredDestructor(2)
	d.Retire(nil)
	if d.Pending() != 0 {
		t.Fatalf("expected nil retire to be a no-op")
	}
}
