package engine

import (
	"eventengine.ai/internal/gameworld"
	"eventengine.ai/internal/metrics"
)

// OnLogin greets the player with how to take part and vote.
func (m *Manager) OnLogin(player gameworld.Actor) {
	if !m.loginNotices || m.messages == nil {
		return
	}
	m.world.Notify(player.ID, m.messages.Message(player, "event_login_participate", true))
	m.world.Notify(player.ID, m.messages.Message(player, "event_login_vote", true))
}

// OnLogout drops a departing player's vote and registration while a round is
// being assembled, or takes the player out of the running event and restores
// its appearance.
func (m *Manager) OnLogout(player gameworld.Actor) {
	r := m.active.Load()
	if r == nil {
		if p := m.Phase(); p == Register || p == Voting {
			m.RetractVote(player.ID)
			_ = m.Unregister(player.ID)
		}
		return
	}

	var (
		ps   Participants
		part gameworld.Participant
		ok   bool
	)
	err := m.guard(r, "logout", func(h Handler) error {
		if ps = h.Participants(); ps == nil {
			return nil
		}
		part, ok = ps.Get(player.ID)
		return nil
	})
	if err != nil || !ok {
		return
	}

	m.world.SetTitle(player.ID, part.OriginalTitle, part.OriginalTitleColor)
	m.world.RemoveFromInstance(part.InstanceID, player.ID)
	_ = m.guard(r, "logout", func(Handler) error {
		ps.Remove(player.ID)
		return nil
	})
	metrics.DispatchTotal.WithLabelValues("logout", "forwarded").Inc()
}

// IsPlayerParticipating reports whether player is enrolled in the running
// event.
func (m *Manager) IsPlayerParticipating(player gameworld.Actor) bool {
	if !player.IsPlayer() {
		return false
	}
	return m.IsPlayableParticipating(player)
}

// IsPlayableParticipating is IsPlayerParticipating for players and their
// summons.
func (m *Manager) IsPlayableParticipating(playable gameworld.Actor) bool {
	r := m.active.Load()
	if r == nil || !playable.IsPlayable() {
		return false
	}
	var in bool
	_ = m.guard(r, "participants", func(h Handler) error {
		if ps := h.Participants(); ps != nil {
			in = ps.Contains(playable)
		}
		return nil
	})
	return in
}
