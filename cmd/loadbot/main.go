package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/gameworld"
	"eventengine.ai/internal/protocol"
)

// loadbot plays a game-server shard: a fixed population of players that
// register, vote and fight while the engine cycles through its phases.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "engine bridge ws url")
		shard    = flag.String("shard", "loadbot", "shard id")
		token    = flag.String("token", os.Getenv("EE_BRIDGE_TOKEN"), "bridge token")
		players  = flag.Int("players", 20, "simulated players")
		interval = flag.Duration("interval", 200*time.Millisecond, "delay between signals")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[loadbot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ShardID:         *shard,
		Token:           *token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("no WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s phase=%s candidates=%v", welcome.SessionID, welcome.Phase, welcome.Candidates)

	b := newBot(*players, welcome.Candidates, rand.New(rand.NewSource(*seed)))
	b.phase = welcome.Phase

	frames := make(chan []byte, 64)
	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	tick := time.NewTicker(*interval)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			logger.Printf("sent=%d suppressed=%d rejected=%d", b.sent, b.suppressed, b.rejected)
			return
		case msg, ok := <-frames:
			if !ok {
				logger.Printf("bridge closed")
				return
			}
			if line := b.handle(msg); line != "" {
				logger.Print(line)
			}
		case <-tick.C:
			for _, out := range b.next() {
				if err := conn.WriteJSON(out); err != nil {
					logger.Fatalf("write: %v", err)
				}
			}
		}
	}
}

type bot struct {
	rng        *rand.Rand
	players    []gameworld.Actor
	candidates []string
	phase      string
	seq        int
	resync     bool

	sent       int
	suppressed int
	rejected   int
}

func newBot(n int, candidates []string, rng *rand.Rand) *bot {
	b := &bot{rng: rng, candidates: candidates}
	for i := 0; i < n; i++ {
		b.players = append(b.players, gameworld.Actor{
			ID:   int32(1000 + i),
			Kind: gameworld.KindPlayer,
			Name: fmt.Sprintf("bot%d", i),
		})
	}
	return b
}

func (b *bot) reqID() string {
	b.seq++
	return fmt.Sprintf("lb-%d", b.seq)
}

func (b *bot) pick() gameworld.Actor { return b.players[b.rng.Intn(len(b.players))] }

// next returns the frames to send this tick.
func (b *bot) next() []any {
	var out []any
	if b.resync || b.seq%25 == 0 {
		b.resync = false
		out = append(out, map[string]any{"type": protocol.TypeStateReq, "protocol_version": protocol.Version, "req_id": b.reqID()})
	}

	p := b.pick()
	switch b.phase {
	case engine.Register.String():
		out = append(out, protocol.CommandMsg{Type: protocol.TypeRegister, ProtocolVersion: protocol.Version, ReqID: b.reqID(), Player: p})
	case engine.Voting.String():
		if len(b.candidates) > 0 {
			kind := b.candidates[b.rng.Intn(len(b.candidates))]
			out = append(out, protocol.CommandMsg{Type: protocol.TypeVote, ProtocolVersion: protocol.Version, ReqID: b.reqID(), Player: p, Kind: kind})
		}
	default:
		out = append(out, b.signal(p))
	}
	b.sent += len(out)
	return out
}

func (b *bot) signal(p gameworld.Actor) protocol.SignalMsg {
	target := b.pick()
	msg := protocol.SignalMsg{
		Type:            protocol.TypeSignal,
		ProtocolVersion: protocol.Version,
		ReqID:           b.reqID(),
		Actor:           p,
		Target:          &target,
	}
	switch r := b.rng.Intn(10); {
	case r < 5:
		msg.Signal = protocol.SignalAttack
	case r < 7:
		msg.Signal = protocol.SignalSkillUse
		msg.Skill = &gameworld.Skill{ID: 1177, Level: 1}
	case r < 8:
		msg.Signal = protocol.SignalKill
	default:
		msg.Signal = protocol.SignalEquipItem
		msg.Target = nil
		msg.Item = &gameworld.Item{ObjectID: b.rng.Int31(), ItemID: 700 + b.rng.Intn(900)}
	}
	return msg
}

// handle consumes one engine frame and returns a log line, if any.
func (b *bot) handle(msg []byte) string {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return ""
	}
	switch base.Type {
	case protocol.TypeState:
		var st protocol.StateMsg
		if json.Unmarshal(msg, &st) == nil {
			b.phase = st.Phase
		}
	case protocol.TypeVerdict:
		var v protocol.VerdictMsg
		if json.Unmarshal(msg, &v) == nil && v.Suppress {
			b.suppressed++
		}
	case protocol.TypeAck:
		var ack protocol.AckMsg
		if json.Unmarshal(msg, &ack) == nil && !ack.Accepted {
			b.rejected++
			if ack.Code == protocol.ErrPhaseClosed {
				b.resync = true
			}
		}
	case protocol.TypeBroadcast:
		var bc protocol.BroadcastMsg
		if json.Unmarshal(msg, &bc) == nil {
			return "BROADCAST " + bc.Text
		}
	}
	return ""
}
