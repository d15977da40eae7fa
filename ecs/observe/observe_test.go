package observe

import (
	"testing"

	"github.com/NOT-REAL-GAMES/forgecore/ecs"
	"github.com/stretchr/testify/require"
)

type obsMarker struct{}

// Observer handlers never run synchronously with the storage mutation that
// enqueued them — only Flush dispatches them, per §4.9.
func TestHandlerDoesNotRunBeforeFlush(t *testing.T) {
	w := ecs.NewWorld()
	fired := false
	OnAdd[obsMarker](w, func(w *ecs.World, e ecs.Entity) { fired = true })

	e := w.Spawn()
	ecs.Insert(w, e, obsMarker{})
	require.False(t, fired)

	Flush(w)
	require.True(t, fired)
}

func TestOnAddFiresOnlyOnFirstInsertion(t *testing.T) {
	w := ecs.NewWorld()
	adds := 0
	OnAdd[obsMarker](w, func(w *ecs.World, e ecs.Entity) { adds++ })

	e := w.Spawn()
	ecs.Insert(w, e, obsMarker{})
	ecs.Insert(w, e, obsMarker{})
	Flush(w)

	require.Equal(t, 1, adds)
}

func TestOnInsertFiresOnEveryInsertion(t *testing.T) {
	w := ecs.NewWorld()
	inserts := 0
	OnInsert[obsMarker](w, func(w *ecs.World, e ecs.Entity) { inserts++ })

	e := w.Spawn()
	ecs.Insert(w, e, obsMarker{})
	ecs.Insert(w, e, obsMarker{})
	Flush(w)

	require.Equal(t, 2, inserts)
}

func TestOnRemoveFiresOnDespawn(t *testing.T) {
	w := ecs.NewWorld()
	removed := false
	OnRemove[obsMarker](w, func(w *ecs.World, e ecs.Entity) { removed = true })

	e := w.Spawn()
	ecs.Insert(w, e, obsMarker{})
	w.Despawn(e)
	Flush(w)

	require.True(t, removed)
}

// EnableAddTriggers/Update give a one-frame-latency batch view: entities
// added this tick aren't visible until the next Update call.
func TestAddTriggersAreOneFrameLatent(t *testing.T) {
	w := ecs.NewWorld()
	EnableAddTriggers[obsMarker](w)

	e := w.Spawn()
	ecs.Insert(w, e, obsMarker{})
	Flush(w)

	var readableBefore []ecs.Entity
	ecs.Res(w, func(tr **Triggers[obsMarker]) { readableBefore = (*tr).Readable() })
	require.Empty(t, readableBefore)

	Update[obsMarker](w)

	var readableAfter []ecs.Entity
	ecs.Res(w, func(tr **Triggers[obsMarker]) { readableAfter = (*tr).Readable() })
	require.Equal(t, []ecs.Entity{e}, readableAfter)
}
