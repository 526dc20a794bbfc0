package engine

import (
	"fmt"
	"time"

	"eventengine.ai/internal/gameworld"
	"eventengine.ai/internal/metrics"
)

// HandlerFault is an error or panic raised by the active handler.
type HandlerFault struct {
	Call     string
	Kind     string
	Panicked bool
	Err      error
}

func (f *HandlerFault) Error() string {
	if f.Panicked {
		return fmt.Sprintf("%s: %s: panic: %v", f.Kind, f.Call, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Call, f.Err)
}

func (f *HandlerFault) Unwrap() error { return f.Err }

// guard runs fn against round r. Errors and panics are logged, counted and
// returned as *HandlerFault; they never escape as panics.
func (m *Manager) guard(r *round, call string, fn func(Handler) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HandlerFault{Call: call, Kind: r.kind, Panicked: true, Err: fmt.Errorf("%v", rec)}
		}
		if err != nil {
			m.recordFault(r, err.(*HandlerFault))
		}
	}()
	if e := fn(r.handler); e != nil {
		return &HandlerFault{Call: call, Kind: r.kind, Err: e}
	}
	return nil
}

func (m *Manager) recordFault(r *round, f *HandlerFault) {
	r.faults.Add(1)
	m.log.Printf("dispatch: %s: %v", f.Call, f.Err)
	metrics.HandlerFaultsTotal.WithLabelValues(f.Call).Inc()

	box := m.faultSink.Load()
	if box == nil || box.sink == nil {
		return
	}
	m.writeFault(box.sink, FaultEntry{
		Time:     time.Now().UTC(),
		RoundID:  r.id,
		Kind:     r.kind,
		Call:     f.Call,
		Panicked: f.Panicked,
		Error:    f.Err.Error(),
	})
}

// writeFault runs after guard's recover, so the sink needs its own.
func (m *Manager) writeFault(sink FaultSink, entry FaultEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log.Printf("fault sink: panic: %v", rec)
		}
	}()
	if err := sink.WriteFault(entry); err != nil {
		m.log.Printf("fault sink: %v", err)
	}
}

// ask forwards a suppressible signal and reports whether the world should
// skip its default behavior.
func (m *Manager) ask(signal string, fn func(Handler) (bool, error)) bool {
	r := m.active.Load()
	if r == nil {
		metrics.DispatchTotal.WithLabelValues(signal, "passthrough").Inc()
		return false
	}
	var suppress bool
	err := m.guard(r, signal, func(h Handler) error {
		var err error
		suppress, err = fn(h)
		return err
	})
	switch {
	case err != nil:
		metrics.DispatchTotal.WithLabelValues(signal, "fault").Inc()
		return false
	case suppress:
		metrics.DispatchTotal.WithLabelValues(signal, "suppressed").Inc()
	default:
		metrics.DispatchTotal.WithLabelValues(signal, "forwarded").Inc()
	}
	return suppress
}

// tell forwards a signal whose outcome the world ignores.
func (m *Manager) tell(r *round, signal string, fn func(Handler) error) {
	if err := m.guard(r, signal, fn); err != nil {
		metrics.DispatchTotal.WithLabelValues(signal, "fault").Inc()
		return
	}
	metrics.DispatchTotal.WithLabelValues(signal, "forwarded").Inc()
}

// OnAttack reports whether the attack should be cancelled. Only attacks by
// playable actors reach the handler.
func (m *Manager) OnAttack(attacker, target gameworld.Actor) bool {
	if !attacker.IsPlayable() {
		return false
	}
	return m.ask("attack", func(h Handler) (bool, error) {
		return h.OnAttack(attacker, target)
	})
}

// OnSkillUse reports whether the skill should be cancelled. Only playable
// casters reach the handler.
func (m *Manager) OnSkillUse(caster, target gameworld.Actor, skill gameworld.Skill) bool {
	if !caster.IsPlayable() {
		return false
	}
	return m.ask("skill_use", func(h Handler) (bool, error) {
		return h.OnSkillUse(caster, target, skill)
	})
}

// OnKill forwards the kill to the killer side and the death to the victim
// side independently. A fault in one does not skip the other.
func (m *Manager) OnKill(killer, victim gameworld.Actor) {
	r := m.active.Load()
	if r == nil {
		metrics.DispatchTotal.WithLabelValues("kill", "passthrough").Inc()
		return
	}
	if killer.IsPlayable() {
		m.tell(r, "kill", func(h Handler) error { return h.OnKill(killer, victim) })
	}
	if victim.IsPlayer() {
		m.tell(r, "death", func(h Handler) error { return h.OnDeath(victim) })
	}
}

func (m *Manager) OnNpcInteract(player, npc gameworld.Actor) {
	r := m.active.Load()
	if r == nil {
		metrics.DispatchTotal.WithLabelValues("npc_interact", "passthrough").Inc()
		return
	}
	m.tell(r, "npc_interact", func(h Handler) error { return h.OnNpcInteract(player, npc) })
}

// OnEquipItem reports whether equipping item should be cancelled.
func (m *Manager) OnEquipItem(player gameworld.Actor, item gameworld.Item) bool {
	return m.ask("use_item", func(h Handler) (bool, error) {
		return h.OnUseItem(player, item)
	})
}
