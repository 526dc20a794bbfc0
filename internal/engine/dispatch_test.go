package engine

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"eventengine.ai/internal/gameworld"
)

func TestDispatch_NoHandlerPassesThrough(t *testing.T) {
	m, _ := newManager("Arena")
	a, b := player(1), player(2)
	if m.OnAttack(a, b) {
		t.Fatalf("attack suppressed without an event")
	}
	if m.OnSkillUse(a, b, gameworld.Skill{ID: 1}) {
		t.Fatalf("skill suppressed without an event")
	}
	if m.OnEquipItem(a, gameworld.Item{ItemID: 57}) {
		t.Fatalf("equip suppressed without an event")
	}
	m.OnKill(a, b)
	m.OnNpcInteract(a, gameworld.Actor{ID: 500, Kind: gameworld.KindNpc})
	if m.IsPlayerParticipating(a) || m.IsPlayableParticipating(a) {
		t.Fatalf("nobody participates without an event")
	}
}

func TestDispatch_Suppress(t *testing.T) {
	m, _ := newManager("Arena")
	h := newStub()
	h.suppress = true
	m.StartRound(h, "Arena", "")

	if !m.OnAttack(player(1), player(2)) {
		t.Fatalf("attack not suppressed")
	}
	if !m.OnSkillUse(player(1), player(2), gameworld.Skill{ID: 3}) {
		t.Fatalf("skill not suppressed")
	}
	if !m.OnEquipItem(player(1), gameworld.Item{ItemID: 1}) {
		t.Fatalf("equip not suppressed")
	}

	monster := gameworld.Actor{ID: 77, Kind: gameworld.KindMonster}
	if m.OnAttack(monster, player(1)) {
		t.Fatalf("non-playable attacker reached the handler")
	}
	if m.OnSkillUse(monster, player(1), gameworld.Skill{}) {
		t.Fatalf("non-playable caster reached the handler")
	}
	if h.count("attack") != 1 || h.count("skill_use") != 1 {
		t.Fatalf("calls = %v", h.calls)
	}

	summon := gameworld.Actor{ID: 40, Kind: gameworld.KindSummon, OwnerID: 1}
	if !m.OnAttack(summon, player(2)) {
		t.Fatalf("summon attack should reach the handler")
	}
}

func TestDispatch_FaultIsolation(t *testing.T) {
	var buf bytes.Buffer
	m := New(Config{Kinds: []string{"Arena"}, World: newRecordingWorld(), Messages: keyMessenger{}, Logger: log.New(&buf, "", 0)})
	sink := &faultCollector{}
	m.SetFaultSink(sink)

	h := newStub()
	h.suppress = true
	h.panicOn = "attack"
	m.StartRound(h, "Arena", "")

	if m.OnAttack(player(1), player(2)) {
		t.Fatalf("panicking handler must give no opinion")
	}

	h.panicOn = ""
	h.err = errors.New("rules table missing")
	if m.OnEquipItem(player(1), gameworld.Item{ItemID: 1}) {
		t.Fatalf("failing handler must give no opinion")
	}
	m.OnNpcInteract(player(1), gameworld.Actor{ID: 500, Kind: gameworld.KindNpc})

	info, _ := m.ActiveRound()
	if info.Faults != 3 {
		t.Fatalf("faults = %d, want 3", info.Faults)
	}
	if len(sink.entries) != 3 {
		t.Fatalf("sink entries = %d", len(sink.entries))
	}
	first := sink.entries[0]
	if first.Call != "attack" || !first.Panicked || first.RoundID != info.ID || first.Kind != "Arena" {
		t.Fatalf("fault entry = %+v", first)
	}
	if sink.entries[1].Panicked || sink.entries[1].Error != "rules table missing" {
		t.Fatalf("fault entry = %+v", sink.entries[1])
	}
	logged := buf.String()
	for _, want := range []string{"dispatch: attack: ", "dispatch: use_item: rules table missing", "dispatch: npc_interact: rules table missing"} {
		if !strings.Contains(logged, want) {
			t.Fatalf("log missing %q:\n%s", want, logged)
		}
	}
}

type brokenSink struct{}

func (brokenSink) WriteFault(FaultEntry) error { panic("audit log closed") }

func TestDispatch_PanickingSinkStaysInside(t *testing.T) {
	var buf bytes.Buffer
	m := New(Config{Kinds: []string{"Arena"}, Logger: log.New(&buf, "", 0)})
	m.SetFaultSink(brokenSink{})

	h := newStub()
	h.suppress = true
	h.err = errors.New("no arena map")
	m.StartRound(h, "Arena", "")

	defer func() {
		if rec := recover(); rec != nil {
			t.Fatalf("fault escaped dispatch: %v", rec)
		}
	}()
	if m.OnAttack(player(1), player(1)) {
		t.Fatalf("failing handler must give no opinion")
	}
	if info, _ := m.ActiveRound(); info.Faults != 1 {
		t.Fatalf("faults = %d", info.Faults)
	}
	if !strings.Contains(buf.String(), "fault sink: panic: ") {
		t.Fatalf("sink panic not logged:\n%s", buf.String())
	}
}

func TestDispatch_GuardWrapsHandlerError(t *testing.T) {
	m, _ := newManager("Arena")
	h := newStub()
	cause := errors.New("bad")
	r := &round{kind: "Arena", handler: h}
	err := m.guard(r, "kill", func(Handler) error { return cause })

	var fault *HandlerFault
	if !errors.As(err, &fault) || fault.Call != "kill" || !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
}

func TestDispatch_KillAndDeathIndependent(t *testing.T) {
	m, _ := newManager("Arena")
	h := newStub()
	h.panicOn = "kill"
	m.StartRound(h, "Arena", "")

	m.OnKill(player(1), player(2))
	if h.count("kill") != 1 || h.count("death") != 1 {
		t.Fatalf("calls = %v", h.calls)
	}

	// Monster victim: no death callback. Monster killer: no kill callback.
	monster := gameworld.Actor{ID: 77, Kind: gameworld.KindMonster}
	m.OnKill(player(1), monster)
	m.OnKill(monster, player(3))
	if h.count("kill") != 2 || h.count("death") != 2 {
		t.Fatalf("calls = %v", h.calls)
	}
}

func TestDispatch_Participation(t *testing.T) {
	m, _ := newManager("Arena")
	h := newStub()
	h.roster.Add(player(1), 100, "")
	m.StartRound(h, "Arena", "")

	if !m.IsPlayerParticipating(player(1)) || m.IsPlayerParticipating(player(2)) {
		t.Fatalf("player participation wrong")
	}
	pet := gameworld.Actor{ID: 10, Kind: gameworld.KindSummon, OwnerID: 1}
	if !m.IsPlayableParticipating(pet) {
		t.Fatalf("summon should participate through its owner")
	}
	if m.IsPlayerParticipating(pet) {
		t.Fatalf("a summon is not a player")
	}
}

func TestDispatch_ConcurrentWithEndRound(t *testing.T) {
	m, _ := newManager("Arena")
	h := newStub()
	h.suppress = true
	m.StartRound(h, "Arena", "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.OnAttack(player(id), player(id+1))
				m.OnKill(player(id), player(id+1))
			}
		}(int32(i))
	}
	m.EndRound()
	wg.Wait()

	if m.OnAttack(player(1), player(2)) {
		t.Fatalf("attack suppressed after EndRound")
	}
}
