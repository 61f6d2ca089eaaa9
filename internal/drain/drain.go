// Package drain implements the in-flight request tracker the Tool
// Dispatcher registers each call with (spec.md §4.3 step 6, §5's
// graceful-shutdown suspension point), generalized from the teacher's
// httpSrv.Shutdown(shutdownCtx) pattern in cmd/server/main.go: instead
// of delegating to net/http's own connection tracking, MASC needs to
// track in-flight *tool calls* (which may outlive the HTTP request that
// started them, once SSE and long handlers are involved), so this is a
// small explicit counter + sync.Cond wrapped around the same shutdown
// shape.
package drain

import "sync"

// Gate tracks in-flight tool calls and lets a shutdown sequence wait
// for them to drain before tearing down the backend and bus.
type Gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	active  int
	closing bool
}

// New returns an open Gate.
func New() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Enter records one in-flight call. It returns false without
// recording anything if the Gate is already closing — the dispatcher
// must treat that as a KindCancelled/"shutting down" rejection rather
// than invoking the handler.
func (g *Gate) Enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.active++
	return true
}

// Leave releases one in-flight call recorded by a successful Enter.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.active <= 0 {
		g.cond.Broadcast()
	}
}

// Close marks the Gate closing: every subsequent Enter fails, so no
// new calls start.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closing = true
}

// Wait blocks until every call recorded by Enter has called Leave, or
// done is closed (the caller's drain-timeout context), whichever comes
// first. Returns true if it drained cleanly, false on timeout.
func (g *Gate) Wait(done <-chan struct{}) bool {
	drained := make(chan struct{})
	go func() {
		g.mu.Lock()
		for g.active > 0 {
			g.cond.Wait()
		}
		g.mu.Unlock()
		close(drained)
	}()

	select {
	case <-drained:
		return true
	case <-done:
		return false
	}
}

// Active reports the current in-flight count, for health/metrics.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
