package arena

import (
	"encoding/json"
	"sync"
	"testing"

	"eventengine.ai/internal/catalogs"
	"eventengine.ai/internal/engine/driver"
	"eventengine.ai/internal/gameworld"
)

type fakeWorld struct {
	mu        sync.Mutex
	titles    map[int32]string
	removed   []int32
	broadcast []string
}

func newFakeWorld() *fakeWorld { return &fakeWorld{titles: map[int32]string{}} }

func (w *fakeWorld) Notify(int32, string) {}

func (w *fakeWorld) Broadcast(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.broadcast = append(w.broadcast, text)
}

func (w *fakeWorld) SetTitle(id int32, title string, _ int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.titles[id] = title
}

func (w *fakeWorld) RemoveFromInstance(_ int, id int32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = append(w.removed, id)
}

type echoMessenger struct{}

func (echoMessenger) Message(_ gameworld.Actor, key string, _ bool, args ...any) string {
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			return key + ":" + s
		}
	}
	return key
}

func pl(id int32, name string) gameworld.Actor {
	return gameworld.Actor{ID: id, Kind: gameworld.KindPlayer, Name: name, Title: "old-" + name}
}

func build(t *testing.T, params string, w gameworld.World, players ...gameworld.Actor) *Arena {
	t.Helper()
	h, err := Factory(driver.RoundSpec{
		Kind:     "ava",
		Def:      catalogs.EventDef{ID: "ava", Title: "All vs All", Params: json.RawMessage(params)},
		Players:  players,
		World:    w,
		Messages: echoMessenger{},
	})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	return h.(*Arena)
}

func TestArena_OutsidersCannotInterfere(t *testing.T) {
	a := build(t, `{}`, nil, pl(1, "a"), pl(2, "b"))
	outsider := pl(3, "c")

	if s, _ := a.OnAttack(outsider, pl(1, "a")); !s {
		t.Fatalf("outsider attack should be suppressed")
	}
	if s, _ := a.OnAttack(pl(1, "a"), outsider); !s {
		t.Fatalf("attack on outsider should be suppressed")
	}
	if s, _ := a.OnAttack(pl(1, "a"), pl(2, "b")); s {
		t.Fatalf("participants should fight freely")
	}
	mob := gameworld.Actor{ID: 99, Kind: gameworld.KindMonster}
	if s, _ := a.OnAttack(pl(1, "a"), mob); s {
		t.Fatalf("monsters are not guarded")
	}
	pet := gameworld.Actor{ID: 10, Kind: gameworld.KindSummon, OwnerID: 2}
	if s, _ := a.OnAttack(pet, pl(1, "a")); s {
		t.Fatalf("a participant's summon fights for its owner")
	}
	if s, _ := a.OnSkillUse(outsider, outsider, gameworld.Skill{ID: 1}); s {
		t.Fatalf("self-cast should pass")
	}
	if s, _ := a.OnSkillUse(outsider, pl(2, "b"), gameworld.Skill{ID: 1}); !s {
		t.Fatalf("outsider skill on participant should be suppressed")
	}
}

func TestArena_TeamsBlockFriendlyFire(t *testing.T) {
	a := build(t, `{"teams":2}`, nil, pl(1, "a"), pl(2, "b"), pl(3, "c"), pl(4, "d"))
	// Sorted by id, round-robin: 1,3 -> team-1 and 2,4 -> team-2.
	if s, _ := a.OnAttack(pl(1, "a"), pl(3, "c")); !s {
		t.Fatalf("teammates should not hurt each other")
	}
	if s, _ := a.OnAttack(pl(1, "a"), pl(2, "b")); s {
		t.Fatalf("opponents should fight")
	}
}

func TestArena_BannedItems(t *testing.T) {
	a := build(t, `{"banned_items":[728]}`, nil, pl(1, "a"), pl(2, "b"))
	if s, _ := a.OnUseItem(pl(1, "a"), gameworld.Item{ItemID: 728}); !s {
		t.Fatalf("banned item should be blocked")
	}
	if s, _ := a.OnUseItem(pl(1, "a"), gameworld.Item{ItemID: 57}); s {
		t.Fatalf("allowed item blocked")
	}
	if s, _ := a.OnUseItem(pl(9, "x"), gameworld.Item{ItemID: 728}); s {
		t.Fatalf("outsiders are not restricted")
	}
}

func TestArena_LastStandingFinishesAndStopRestores(t *testing.T) {
	w := newFakeWorld()
	a := build(t, `{"instance":42}`, w, pl(1, "a"), pl(2, "b"), pl(3, "c"))
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.titles[1] != "[All vs All]" {
		t.Fatalf("title = %q", w.titles[1])
	}

	_ = a.OnKill(pl(1, "a"), pl(2, "b"))
	_ = a.OnDeath(pl(2, "b"))
	if a.Finished() {
		t.Fatalf("two still standing")
	}
	if s, _ := a.OnAttack(pl(2, "b"), pl(1, "a")); !s {
		t.Fatalf("fallen participant should not attack")
	}
	_ = a.OnKill(pl(1, "a"), pl(3, "c"))
	_ = a.OnDeath(pl(3, "c"))
	if !a.Finished() {
		t.Fatalf("one standing should finish")
	}
	p, _ := a.roster.Get(1)
	if p.Kills != 2 || p.InstanceID != 42 {
		t.Fatalf("participant = %+v", p)
	}

	a.Stop()
	a.Stop()
	if len(w.broadcast) != 1 || w.broadcast[0] != "event_arena_winner:a" {
		t.Fatalf("broadcast = %v", w.broadcast)
	}
	if w.titles[1] != "old-a" || len(w.removed) != 3 {
		t.Fatalf("titles=%v removed=%v", w.titles, w.removed)
	}
	if a.roster.Len() != 0 {
		t.Fatalf("roster not emptied")
	}
}

func TestArena_StartWithoutPlayersFails(t *testing.T) {
	npc := gameworld.Actor{ID: 5, Kind: gameworld.KindNpc}
	a := build(t, `{}`, nil, npc)
	if err := a.Start(); err == nil {
		t.Fatalf("expected error with no participants")
	}
}

func TestFactory_RejectsBadParams(t *testing.T) {
	_, err := Factory(driver.RoundSpec{
		Kind: "tvt",
		Def:  catalogs.EventDef{ID: "tvt", Params: json.RawMessage(`{"teams":-1}`)},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	_, err = Factory(driver.RoundSpec{
		Kind: "tvt",
		Def:  catalogs.EventDef{ID: "tvt", Params: json.RawMessage(`{"teams":"two"}`)},
	})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}
