package engine

import "eventengine.ai/internal/gameworld"

// Participants is the enrolment set of a running event.
type Participants interface {
	// Contains reports whether a playable actor takes part, resolving summons
	// through their owner.
	Contains(a gameworld.Actor) bool
	Get(playerID int32) (gameworld.Participant, bool)
	Remove(playerID int32) bool
}

// Handler is one running event. Boolean returns ask the engine to suppress
// the world's default behavior for that signal.
type Handler interface {
	OnAttack(attacker, target gameworld.Actor) (bool, error)
	OnSkillUse(caster, target gameworld.Actor, skill gameworld.Skill) (bool, error)
	OnKill(killer, victim gameworld.Actor) error
	OnDeath(player gameworld.Actor) error
	OnNpcInteract(player, npc gameworld.Actor) error
	OnUseItem(player gameworld.Actor, item gameworld.Item) (bool, error)
	Participants() Participants
}

// Optional lifecycle hooks the driver calls when a handler implements them.
type (
	Starter interface {
		Start() error
	}
	Stopper interface {
		Stop()
	}
	Finisher interface {
		Finished() bool
	}
)
