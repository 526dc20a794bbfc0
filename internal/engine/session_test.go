package engine

import (
	"testing"

	"eventengine.ai/internal/gameworld"
)

func TestOnLogin_SendsBothNotices(t *testing.T) {
	m, w := newManager("Arena")
	m.OnLogin(player(5))
	got := w.notices[5]
	if len(got) != 2 || got[0] != "*event_login_participate" || got[1] != "*event_login_vote" {
		t.Fatalf("notices = %v", got)
	}

	quiet := New(Config{Kinds: []string{"Arena"}, World: w, Messages: keyMessenger{}, DisableLoginNotices: true})
	quiet.OnLogin(player(6))
	if len(w.notices[6]) != 0 {
		t.Fatalf("notices sent while disabled")
	}
}

func TestOnLogout_DuringSignupDropsVoteAndRegistration(t *testing.T) {
	m, _ := newManager("Arena", "Siege")
	m.SetPhase(Register)
	_ = m.Register(player(1))
	_ = m.Register(player(2))
	m.SetPhase(Voting)
	_ = m.CastVote(player(1), "Siege")

	m.OnLogout(player(1))
	if m.IsRegistered(1) || m.HasVoted(1) || m.VoteCount("Siege") != 0 {
		t.Fatalf("departing player still counted")
	}
	if !m.IsRegistered(2) {
		t.Fatalf("other player dropped")
	}
}

func TestOnLogout_WhileWaitingKeepsState(t *testing.T) {
	m, _ := newManager("Arena")
	m.SetPhase(Register)
	_ = m.Register(player(1))
	m.SetPhase(Waiting)

	m.OnLogout(player(1))
	if !m.IsRegistered(1) {
		t.Fatalf("registration removed outside Register/Voting")
	}
}

func TestOnLogout_RunningRestoresParticipant(t *testing.T) {
	m, w := newManager("Arena")
	h := newStub()
	p := gameworld.Actor{ID: 3, Kind: gameworld.KindPlayer, Title: "Lord", TitleColor: 0xABCDEF}
	h.roster.Add(p, 9001, "")
	m.StartRound(h, "Arena", "")

	m.OnLogout(gameworld.Actor{ID: 3, Kind: gameworld.KindPlayer, Title: "[Arena]", TitleColor: 0xFF})
	if w.titles[3] != "Lord/abcdef" {
		t.Fatalf("title = %q", w.titles[3])
	}
	if len(w.removals) != 1 || w.removals[0] != "9001:3" {
		t.Fatalf("removals = %v", w.removals)
	}
	if h.roster.Len() != 0 {
		t.Fatalf("participant not removed")
	}
	if h.count("death") != 0 {
		t.Fatalf("logout must not be forwarded as a death")
	}

	m.OnLogout(player(99))
	if len(w.removals) != 1 {
		t.Fatalf("non-participant touched: %v", w.removals)
	}
}
