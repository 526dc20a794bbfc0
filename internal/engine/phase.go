package engine

import "eventengine.ai/internal/metrics"

type Phase int32

const (
	Waiting Phase = iota
	Register
	Voting
	Running
)

var phaseNames = []string{"waiting", "register", "voting", "running"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Next is the phase that follows p in the cycle.
func (p Phase) Next() Phase {
	if p == Running {
		return Waiting
	}
	return p + 1
}

func (m *Manager) Phase() Phase { return Phase(m.phase.Load()) }

func (m *Manager) IsWaiting() bool          { return m.Phase() == Waiting }
func (m *Manager) IsRegistrationOpen() bool { return m.Phase() == Register }
func (m *Manager) IsVotingOpen() bool       { return m.Phase() == Voting }
func (m *Manager) IsRunning() bool          { return m.Phase() == Running }

// SetPhase is the only phase mutator. Transitions are not validated.
func (m *Manager) SetPhase(p Phase) {
	m.phase.Store(int32(p))
	metrics.SetPhase(p.String(), phaseNames)
}

func (m *Manager) Countdown() int { return m.countdown.Get() }

func (m *Manager) SetCountdown(n int) {
	m.countdown.Set(n)
	metrics.Countdown.Set(float64(n))
}

func (m *Manager) DecrementCountdown() int {
	n := m.countdown.Decrement()
	metrics.Countdown.Set(float64(n))
	return n
}

func (m *Manager) NextKind() string {
	if k := m.nextKind.Load(); k != nil {
		return *k
	}
	return ""
}

func (m *Manager) SetNextKind(kind string) { m.nextKind.Store(&kind) }
