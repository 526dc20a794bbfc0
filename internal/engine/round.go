package engine

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"eventengine.ai/internal/metrics"
)

type round struct {
	id        string
	kind      string
	handler   Handler
	startedAt time.Time
	faults    atomic.Int64
}

// RoundInfo describes the running round.
type RoundInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"started_at"`
	Faults    int       `json:"faults"`
}

// ResolveWinningCandidate returns the kind with the most votes. Ties,
// including a round where nobody voted, are broken uniformly at random.
// ok is false only when no candidate kinds are configured.
func (m *Manager) ResolveWinningCandidate() (string, bool) {
	leaders, _ := m.tally.Leaders()
	switch len(leaders) {
	case 0:
		return "", false
	case 1:
		return leaders[0], true
	}
	return leaders[m.pick(len(leaders))], true
}

// StartRound installs h as the active handler for kind. An empty id gets a
// fresh one.
func (m *Manager) StartRound(h Handler, kind, id string) {
	if id == "" {
		id = uuid.NewString()
	}
	m.active.Store(&round{
		id:        id,
		kind:      kind,
		handler:   h,
		startedAt: time.Now().UTC(),
	})
}

// EndRound drops the active handler and resets votes and registrations.
// Calling it with no active round only resets.
func (m *Manager) EndRound() {
	m.active.Store(nil)
	m.tally.Clear()
	m.registry.Clear()
	metrics.RegisteredPlayers.Set(0)
}

func (m *Manager) ActiveKind() string {
	if r := m.active.Load(); r != nil {
		return r.kind
	}
	return ""
}

func (m *Manager) ActiveHandler() Handler {
	if r := m.active.Load(); r != nil {
		return r.handler
	}
	return nil
}

func (m *Manager) ActiveRound() (RoundInfo, bool) {
	r := m.active.Load()
	if r == nil {
		return RoundInfo{}, false
	}
	return RoundInfo{
		ID:        r.id,
		Kind:      r.kind,
		StartedAt: r.startedAt,
		Faults:    int(r.faults.Load()),
	}, true
}
