package revision

import (
	"context"
	"sync"
)

// inflight makes sure a comment is picked up by at most one goroutine at a
// time and lets Close wait for the ones still running.
type inflight struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks id as in flight. It returns false if it already is.
func (g *inflight) TryLock(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[id]; ok {
		return false
	}
	g.running[id] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock must follow every successful TryLock.
func (g *inflight) Unlock(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, id)
	g.wg.Done()
}

func (g *inflight) Running(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[id]
	return ok
}

// WaitAll blocks until nothing is in flight or ctx is done. It reports
// whether everything finished.
func (g *inflight) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
