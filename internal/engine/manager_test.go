package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"eventengine.ai/internal/engine/roster"
	"eventengine.ai/internal/gameworld"
)

func player(id int32) gameworld.Actor {
	return gameworld.Actor{ID: id, Kind: gameworld.KindPlayer, Name: fmt.Sprintf("p%d", id)}
}

type recordingWorld struct {
	mu       sync.Mutex
	notices  map[int32][]string
	titles   map[int32]string
	removals []string
}

func newRecordingWorld() *recordingWorld {
	return &recordingWorld{notices: map[int32][]string{}, titles: map[int32]string{}}
}

func (w *recordingWorld) Notify(id int32, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notices[id] = append(w.notices[id], text)
}

func (w *recordingWorld) Broadcast(string) {}

func (w *recordingWorld) SetTitle(id int32, title string, color int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.titles[id] = fmt.Sprintf("%s/%x", title, color)
}

func (w *recordingWorld) RemoveFromInstance(instanceID int, id int32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removals = append(w.removals, fmt.Sprintf("%d:%d", instanceID, id))
}

type keyMessenger struct{}

func (keyMessenger) Message(p gameworld.Actor, key string, useDefaultColor bool, _ ...any) string {
	if useDefaultColor {
		return "*" + key
	}
	return key
}

// stubHandler answers every signal from its fields and counts calls.
type stubHandler struct {
	mu    sync.Mutex
	calls map[string]int

	suppress bool
	err      error
	panicOn  string
	roster   *roster.Roster
}

func newStub() *stubHandler {
	return &stubHandler{calls: map[string]int{}, roster: roster.New()}
}

func (s *stubHandler) hit(call string) error {
	s.mu.Lock()
	s.calls[call]++
	s.mu.Unlock()
	if s.panicOn == call {
		panic("boom in " + call)
	}
	return s.err
}

func (s *stubHandler) count(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[call]
}

func (s *stubHandler) OnAttack(_, _ gameworld.Actor) (bool, error) {
	return s.suppress, s.hit("attack")
}

func (s *stubHandler) OnSkillUse(_, _ gameworld.Actor, _ gameworld.Skill) (bool, error) {
	return s.suppress, s.hit("skill_use")
}

func (s *stubHandler) OnKill(_, _ gameworld.Actor) error        { return s.hit("kill") }
func (s *stubHandler) OnDeath(gameworld.Actor) error            { return s.hit("death") }
func (s *stubHandler) OnNpcInteract(_, _ gameworld.Actor) error { return s.hit("npc_interact") }
func (s *stubHandler) Participants() Participants               { return s.roster }

func (s *stubHandler) OnUseItem(gameworld.Actor, gameworld.Item) (bool, error) {
	return s.suppress, s.hit("use_item")
}

type faultCollector struct {
	mu      sync.Mutex
	entries []FaultEntry
}

func (c *faultCollector) WriteFault(e FaultEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func newManager(kinds ...string) (*Manager, *recordingWorld) {
	w := newRecordingWorld()
	return New(Config{Kinds: kinds, World: w, Messages: keyMessenger{}}), w
}

func TestManager_PhasePredicates(t *testing.T) {
	m, _ := newManager("arena")
	if !m.IsWaiting() || m.Phase() != Waiting {
		t.Fatalf("new manager should be waiting, got %s", m.Phase())
	}
	for _, p := range []Phase{Register, Voting, Running, Waiting} {
		m.SetPhase(p)
		got := []bool{m.IsWaiting(), m.IsRegistrationOpen(), m.IsVotingOpen(), m.IsRunning()}
		for i, v := range got {
			if v != (Phase(i) == p) {
				t.Fatalf("phase %s: predicates %v", p, got)
			}
		}
	}
	if Running.Next() != Waiting || Waiting.Next() != Register {
		t.Fatalf("phase cycle broken")
	}
}

func TestManager_Countdown(t *testing.T) {
	m, _ := newManager("arena")
	m.SetCountdown(3)
	for want := 2; want >= -1; want-- {
		if got := m.DecrementCountdown(); got != want {
			t.Fatalf("decrement = %d, want %d", got, want)
		}
	}
	if m.Countdown() != -1 {
		t.Fatalf("countdown = %d", m.Countdown())
	}
}

func TestResolveWinningCandidate_TieIsUniformAmongLeaders(t *testing.T) {
	kinds := []string{"Arena", "Siege", "CTF"}
	seen := map[string]bool{}
	for pick := 0; pick < 2; pick++ {
		pick := pick
		m := New(Config{Kinds: kinds, Pick: func(n int) int {
			if n != 2 {
				t.Fatalf("pick over %d leaders, want 2", n)
			}
			return pick
		}})
		m.SetPhase(Voting)
		id := int32(1)
		for kind, n := range map[string]int{"Arena": 5, "Siege": 5, "CTF": 2} {
			for i := 0; i < n; i++ {
				if err := m.CastVote(player(id), kind); err != nil {
					t.Fatalf("vote: %v", err)
				}
				id++
			}
		}
		got, ok := m.ResolveWinningCandidate()
		if !ok {
			t.Fatalf("no winner")
		}
		seen[got] = true
	}
	if !seen["Arena"] || !seen["Siege"] || seen["CTF"] {
		t.Fatalf("winners = %v", seen)
	}
}

func TestResolveWinningCandidate_AllZeroPicksAnyKind(t *testing.T) {
	m := New(Config{Kinds: []string{"Arena", "Siege", "CTF"}, Pick: func(n int) int {
		if n != 3 {
			t.Fatalf("pick over %d, want all 3 kinds", n)
		}
		return 2
	}})
	got, ok := m.ResolveWinningCandidate()
	if !ok || got == "" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func resolveMany(t *testing.T, m *Manager, trials int) map[string]int {
	t.Helper()
	wins := map[string]int{}
	for i := 0; i < trials; i++ {
		got, ok := m.ResolveWinningCandidate()
		if !ok {
			t.Fatalf("no winner on trial %d", i)
		}
		wins[got]++
	}
	return wins
}

func TestResolveWinningCandidate_TieDistribution(t *testing.T) {
	const trials = 10000
	m := New(Config{Kinds: []string{"Arena", "Siege", "CTF"}, Pick: rand.New(rand.NewSource(1)).Intn})
	m.SetPhase(Voting)
	id := int32(1)
	for kind, n := range map[string]int{"Arena": 5, "Siege": 5, "CTF": 2} {
		for i := 0; i < n; i++ {
			if err := m.CastVote(player(id), kind); err != nil {
				t.Fatalf("vote: %v", err)
			}
			id++
		}
	}

	wins := resolveMany(t, m, trials)
	if wins["CTF"] != 0 {
		t.Fatalf("CTF won %d times with fewer votes", wins["CTF"])
	}
	for _, kind := range []string{"Arena", "Siege"} {
		if d := wins[kind] - trials/2; d < -300 || d > 300 {
			t.Fatalf("%s won %d of %d, want about half", kind, wins[kind], trials)
		}
	}
}

func TestResolveWinningCandidate_AllZeroDistribution(t *testing.T) {
	const trials = 9000
	kinds := []string{"Arena", "Siege", "CTF"}
	m := New(Config{Kinds: kinds, Pick: rand.New(rand.NewSource(7)).Intn})

	wins := resolveMany(t, m, trials)
	for _, kind := range kinds {
		if d := wins[kind] - trials/3; d < -300 || d > 300 {
			t.Fatalf("%s won %d of %d, want about a third", kind, wins[kind], trials)
		}
	}
}

func TestResolveWinningCandidate_NoKinds(t *testing.T) {
	m := New(Config{})
	if _, ok := m.ResolveWinningCandidate(); ok {
		t.Fatalf("expected no winner without candidates")
	}
	if !errors.Is(ValidateCandidates(nil), ErrNoCandidates) {
		t.Fatalf("ValidateCandidates should report ErrNoCandidates")
	}
	if err := m.ReloadCandidates(nil); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("reload err = %v", err)
	}
	if err := m.ReloadCandidates([]string{"x"}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, ok := m.ResolveWinningCandidate(); !ok || got != "x" {
		t.Fatalf("after reload got %q ok=%v", got, ok)
	}
}

func TestManager_VoteGating(t *testing.T) {
	m, _ := newManager("Arena", "Siege")
	if err := m.CastVote(player(1), "Arena"); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("vote while waiting: %v", err)
	}
	m.SetPhase(Voting)
	if err := m.CastVote(player(1), "Arena"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := m.CastVote(player(1), "Siege"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("second vote: %v", err)
	}
	if err := m.CastVote(player(2), "Nope"); !errors.Is(err, ErrUnknownCandidate) {
		t.Fatalf("unknown kind: %v", err)
	}
	npc := gameworld.Actor{ID: 9, Kind: gameworld.KindNpc}
	if err := m.CastVote(npc, "Arena"); !errors.Is(err, ErrNotPlayer) {
		t.Fatalf("npc vote: %v", err)
	}
	if m.VoteCount("Arena") != 1 || m.VoteCount("Siege") != 0 || m.TotalVotes() != 1 {
		t.Fatalf("counts = %v", m.VoteCounts())
	}
}

func TestManager_RegisterIdempotent(t *testing.T) {
	m, _ := newManager("Arena")
	if err := m.Register(player(1)); !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("register while waiting: %v", err)
	}
	m.SetPhase(Register)
	if err := m.Register(player(1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(player(1)); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("re-register: %v", err)
	}
	if !m.IsRegistered(1) || m.RegisteredCount() != 1 {
		t.Fatalf("registry size = %d", m.RegisteredCount())
	}
	if err := m.Unregister(1); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if err := m.Unregister(1); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("double unregister: %v", err)
	}
}

func TestManager_EndRoundTwice(t *testing.T) {
	m, _ := newManager("Arena")
	m.SetPhase(Register)
	_ = m.Register(player(1))
	m.SetPhase(Voting)
	_ = m.CastVote(player(1), "Arena")

	h := newStub()
	m.StartRound(h, "Arena", "")
	if m.ActiveHandler() == nil || m.ActiveKind() != "Arena" {
		t.Fatalf("round not installed")
	}
	info, ok := m.ActiveRound()
	if !ok || info.ID == "" {
		t.Fatalf("round info = %+v", info)
	}

	m.EndRound()
	m.EndRound()
	if m.ActiveHandler() != nil || m.ActiveKind() != "" {
		t.Fatalf("handler still active")
	}
	if m.TotalVotes() != 0 || m.RegisteredCount() != 0 {
		t.Fatalf("round state not cleared: votes=%d registered=%d", m.TotalVotes(), m.RegisteredCount())
	}
	if len(m.Candidates()) != 1 {
		t.Fatalf("candidates dropped: %v", m.Candidates())
	}
}

func TestManager_StateSnapshot(t *testing.T) {
	m, _ := newManager("Arena", "Siege")
	m.SetPhase(Voting)
	m.SetCountdown(42)
	m.SetNextKind("Siege")
	_ = m.CastVote(player(1), "Siege")

	s := m.State()
	if s.Phase != "voting" || s.Countdown != 42 || s.NextKind != "Siege" || s.Votes["Siege"] != 1 {
		t.Fatalf("state = %+v", s)
	}
	if len(s.Candidates) != 2 || s.ActiveKind != "" {
		t.Fatalf("state = %+v", s)
	}
}
