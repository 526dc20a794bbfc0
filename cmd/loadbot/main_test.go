package main

import (
	"encoding/json"
	"math/rand"
	"testing"

	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/protocol"
)

func TestBot_FramesFollowPhase(t *testing.T) {
	b := newBot(4, []string{"ava", "tvt"}, rand.New(rand.NewSource(1)))

	b.phase = engine.Register.String()
	out := b.next()
	if len(out) != 2 {
		t.Fatalf("first tick should carry a STATE_REQ and a command, got %d", len(out))
	}
	cmd, ok := out[1].(protocol.CommandMsg)
	if !ok || cmd.Type != protocol.TypeRegister {
		t.Fatalf("expected REGISTER, got %#v", out[1])
	}

	b.phase = engine.Voting.String()
	out = b.next()
	cmd, ok = out[len(out)-1].(protocol.CommandMsg)
	if !ok || cmd.Type != protocol.TypeVote || (cmd.Kind != "ava" && cmd.Kind != "tvt") {
		t.Fatalf("expected VOTE, got %#v", out[len(out)-1])
	}

	b.phase = engine.Running.String()
	for i := 0; i < 50; i++ {
		for _, f := range b.next() {
			sig, ok := f.(protocol.SignalMsg)
			if !ok {
				continue
			}
			raw, err := json.Marshal(sig)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if err := protocol.Validate(protocol.TypeSignal, raw); err != nil {
				t.Fatalf("bot sent an invalid %s: %v", sig.Signal, err)
			}
		}
	}
}

func TestBot_HandleTracksState(t *testing.T) {
	b := newBot(1, nil, rand.New(rand.NewSource(1)))
	b.handle([]byte(`{"type":"STATE","protocol_version":"1.0","phase":"voting","countdown":10,"registered":0,"votes":{}}`))
	if b.phase != "voting" {
		t.Fatalf("phase=%q", b.phase)
	}
	b.handle([]byte(`{"type":"VERDICT","protocol_version":"1.0","req_id":"x","suppress":true}`))
	b.handle([]byte(`{"type":"ACK","protocol_version":"1.0","ack_for":"y","accepted":false,"code":"E_PHASE_CLOSED"}`))
	if b.suppressed != 1 || b.rejected != 1 || !b.resync {
		t.Fatalf("suppressed=%d rejected=%d resync=%v", b.suppressed, b.rejected, b.resync)
	}
	if line := b.handle([]byte(`{"type":"BROADCAST","text":"hi"}`)); line != "BROADCAST hi" {
		t.Fatalf("line=%q", line)
	}
}
