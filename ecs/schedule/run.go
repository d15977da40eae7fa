package schedule

import (
	"sync"

	"github.com/NOT-REAL-GAMES/forgecore/ecs"
)

// RunSequential walks the precomputed topological order once: for each
// system it evaluates conditions, then runs it inline (exclusive systems
// take the same *ecs.World access as regular ones here, since there is no
// concurrency to fence against).
func (c *Container) RunSequential(w *ecs.World) []error {
	var errs []error
	for _, id := range c.topologicalOrder() {
		e := c.systems[id]
		if e.kind == kindCondition {
			continue
		}
		if !c.evaluateConditions(w, e) {
			continue
		}
		var err error
		if e.kind == kindExclusive {
			err = e.excl(w)
		} else {
			err = e.run(w)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// RunParallel dispatches zero-in-degree systems as they become ready.
// Regular systems run on their own goroutine once no in-flight system's
// AccessSet conflicts with theirs; exclusive systems act as write-
// barriers, waiting for every in-flight system before running inline.
func (c *Container) RunParallel(w *ecs.World) []error {
	order := c.topologicalOrder()
	inDegree := make(map[SystemID]int, len(order))
	for _, deps := range c.adj {
		for _, d := range deps {
			inDegree[d]++
		}
	}

	remaining := make(map[SystemID]bool, len(order))
	for _, id := range order {
		remaining[id] = true
	}

	var (
		mu       sync.Mutex
		cond     = sync.NewCond(&mu)
		inFlight = make(map[SystemID]*systemEntry)
		errs     []error
		wg       sync.WaitGroup
	)

	ready := make([]SystemID, 0, len(order))
	for _, id := range order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	complete := func(id SystemID, err error) {
		mu.Lock()
		delete(inFlight, id)
		delete(remaining, id)
		if err != nil {
			errs = append(errs, err)
		}
		for _, dep := range c.adj[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		cond.Broadcast()
		mu.Unlock()
	}

	conflicts := func(e *systemEntry) bool {
		for _, in := range inFlight {
			if e.access.ConflictsWith(in.access) {
				return true
			}
		}
		return false
	}

	mu.Lock()
	for len(remaining) > 0 {
		dispatchedAny := false
		for i := 0; i < len(ready); {
			id := ready[i]
			e := c.systems[id]

			if e.kind == kindCondition {
				ready = append(ready[:i], ready[i+1:]...)
				mu.Unlock()
				complete(id, nil)
				mu.Lock()
				continue
			}
			if !c.evaluateConditions(w, e) {
				ready = append(ready[:i], ready[i+1:]...)
				mu.Unlock()
				complete(id, nil)
				mu.Lock()
				continue
			}

			if e.kind == kindExclusive {
				for len(inFlight) > 0 {
					cond.Wait()
				}
				ready = append(ready[:i], ready[i+1:]...)
				mu.Unlock()
				err := e.excl(w)
				complete(id, err)
				mu.Lock()
				dispatchedAny = true
				continue
			}

			if conflicts(e) {
				i++
				continue
			}

			inFlight[id] = e
			ready = append(ready[:i], ready[i+1:]...)
			dispatchedAny = true
			wg.Add(1)
			go func(id SystemID, e *systemEntry) {
				defer wg.Done()
				err := e.run(w)
				complete(id, err)
			}(id, e)
		}

		if !dispatchedAny && len(remaining) > 0 {
			cond.Wait()
		}
	}
	mu.Unlock()

	wg.Wait()
	return errs
}
