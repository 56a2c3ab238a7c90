package api

import (
	"sync"
	"time"
)

// minRequestSpacing is the shortest interval at which a second request on
// the same session is accepted while an earlier one is still in flight.
// Catches double-clicks and network retries; per-session correctness is
// guaranteed separately by the session store's serialization.
const minRequestSpacing = time.Second

type guardState struct {
	inFlight  int
	lastStart time.Time
}

// sessionGuard rate-limits concurrent requests per session id.
type sessionGuard struct {
	mu     sync.Mutex
	active map[string]*guardState
}

func newSessionGuard() *sessionGuard {
	return &sessionGuard{active: make(map[string]*guardState)}
}

// begin reports whether a request on the session may proceed. Each accepted
// begin must be paired with an end.
func (g *sessionGuard) begin(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	state, ok := g.active[sessionID]
	if !ok {
		state = &guardState{}
		g.active[sessionID] = state
	}
	if state.inFlight > 0 && now.Sub(state.lastStart) < minRequestSpacing {
		return false
	}
	state.inFlight++
	state.lastStart = now
	return true
}

// end releases a slot taken by begin, dropping the bookkeeping entry once
// the session has no requests in flight.
func (g *sessionGuard) end(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok := g.active[sessionID]
	if !ok {
		return
	}
	state.inFlight--
	if state.inFlight <= 0 {
		delete(g.active, sessionID)
	}
}
