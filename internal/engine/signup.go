package engine

import (
	"errors"

	"eventengine.ai/internal/gameworld"
	"eventengine.ai/internal/metrics"
)

var (
	ErrRegistrationClosed = errors.New("engine: registration is closed")
	ErrVotingClosed       = errors.New("engine: voting is closed")
	ErrAlreadyRegistered  = errors.New("engine: already registered")
	ErrNotRegistered      = errors.New("engine: not registered")
	ErrAlreadyVoted       = errors.New("engine: already voted")
	ErrUnknownCandidate   = errors.New("engine: unknown event kind")
	ErrNotPlayer          = errors.New("engine: actor is not a player")
)

// Register adds player to the next round. Only open during Register.
func (m *Manager) Register(player gameworld.Actor) error {
	if !player.IsPlayer() {
		return ErrNotPlayer
	}
	if !m.IsRegistrationOpen() {
		return ErrRegistrationClosed
	}
	if !m.registry.Register(player) {
		return ErrAlreadyRegistered
	}
	metrics.RegistrationsTotal.WithLabelValues("register").Inc()
	metrics.RegisteredPlayers.Set(float64(m.registry.Len()))
	return nil
}

// Unregister removes a player from the next round in any phase.
func (m *Manager) Unregister(playerID int32) error {
	if !m.registry.Unregister(playerID) {
		return ErrNotRegistered
	}
	metrics.RegistrationsTotal.WithLabelValues("unregister").Inc()
	metrics.RegisteredPlayers.Set(float64(m.registry.Len()))
	return nil
}

func (m *Manager) IsRegistered(playerID int32) bool     { return m.registry.IsRegistered(playerID) }
func (m *Manager) RegisteredPlayers() []gameworld.Actor { return m.registry.All() }
func (m *Manager) RegisteredCount() int                 { return m.registry.Len() }

// CastVote counts voter's vote for kind. The first vote of a round wins.
func (m *Manager) CastVote(voter gameworld.Actor, kind string) error {
	if !voter.IsPlayer() {
		return ErrNotPlayer
	}
	if !m.IsVotingOpen() {
		return ErrVotingClosed
	}
	if !m.isCandidate(kind) {
		return ErrUnknownCandidate
	}
	if !m.tally.Cast(voter.ID, kind) {
		return ErrAlreadyVoted
	}
	metrics.VotesTotal.WithLabelValues(kind).Inc()
	return nil
}

// RetractVote drops voter's vote, if any.
func (m *Manager) RetractVote(voterID int32) bool { return m.tally.Retract(voterID) }

func (m *Manager) HasVoted(voterID int32) bool { return m.tally.HasVoted(voterID) }
func (m *Manager) VoteCount(kind string) int   { return m.tally.CountFor(kind) }
func (m *Manager) TotalVotes() int             { return m.tally.Total() }
func (m *Manager) VoteCounts() map[string]int  { return m.tally.Counts() }

func (m *Manager) isCandidate(kind string) bool {
	for _, k := range m.tally.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
