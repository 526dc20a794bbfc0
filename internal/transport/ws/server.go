// Package ws is the websocket bridge between game-server shards and the
// event engine. Shards stream world signals in; the engine pushes notices,
// titles and instance changes back out to every shard.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/gameworld"
	"eventengine.ai/internal/metrics"
	"eventengine.ai/internal/protocol"
)

// Engine is the slice of engine.Manager the bridge drives.
type Engine interface {
	OnAttack(attacker, target gameworld.Actor) bool
	OnSkillUse(caster, target gameworld.Actor, skill gameworld.Skill) bool
	OnKill(killer, victim gameworld.Actor)
	OnNpcInteract(player, npc gameworld.Actor)
	OnEquipItem(player gameworld.Actor, item gameworld.Item) bool
	OnLogin(player gameworld.Actor)
	OnLogout(player gameworld.Actor)

	Register(player gameworld.Actor) error
	Unregister(playerID int32) error
	CastVote(voter gameworld.Actor, kind string) error

	State() engine.State
}

type Config struct {
	Logger       *log.Logger
	EventsDigest string

	// Token, when set, must match the HELLO token.
	Token string

	// Messages renders the per-player replies to commands. Optional.
	Messages engine.Messenger

	// QueueSize bounds the pushed frames buffered per shard.
	QueueSize int
}

type Server struct {
	cfg Config
	log *log.Logger
	eng Engine

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
	closing  bool
	handlers sync.WaitGroup
}

type session struct {
	id    string
	shard string
	conn  *websocket.Conn
	out   chan []byte
}

func NewServer(cfg Config) *Server {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // shards are trusted peers
		},
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}
	return s
}

// SetEngine wires the engine. Call before serving.
func (s *Server) SetEngine(e Engine) { s.eng = e }

func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.eng == nil {
			http.Error(rw, "engine disabled", http.StatusServiceUnavailable)
			return
		}
		if !s.enter() {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.handlers.Done()

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		if !s.attach(sess) {
			return
		}
		defer s.detach(sess)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			reply := s.handleFrame(msg)
			if reply == nil {
				continue
			}
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case sess.out <- b:
			case <-ctx.Done():
			}
		}
		s.log.Printf("shard %s (%s) disconnected", sess.shard, sess.id)
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	reject := func(reason string) *session {
		metrics.BridgeFramesTotal.WithLabelValues(protocol.TypeHello, "rejected").Inc()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return reject("expected HELLO")
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		return reject("bad HELLO")
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return reject("bad HELLO")
	}
	if hello.ProtocolVersion != protocol.Version {
		return reject("bad protocol_version")
	}
	if s.cfg.Token != "" && hello.Token != s.cfg.Token {
		return reject("bad token")
	}

	st := s.eng.State()
	sess := &session{
		id:    uuid.NewString(),
		shard: hello.ShardID,
		conn:  conn,
		out:   make(chan []byte, s.cfg.QueueSize),
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		Candidates:      st.Candidates,
		EventsDigest:    s.cfg.EventsDigest,
		Phase:           st.Phase,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	metrics.BridgeFramesTotal.WithLabelValues(protocol.TypeHello, "ok").Inc()
	s.log.Printf("shard %s connected as %s", sess.shard, sess.id)
	return sess
}

func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.handlers.Add(1)
	return true
}

func (s *Server) attach(sess *session) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.BridgeSessions.Set(float64(n))
	return true
}

// Close drops every shard connection and waits for their handlers to return.
// After Close no handler calls into the engine. http.Server.Shutdown does not
// cover hijacked connections, so callers need both.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	conns := make([]*websocket.Conn, 0, len(s.sessions))
	for _, sess := range s.sessions {
		conns = append(conns, sess.conn)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	s.handlers.Wait()
}

func (s *Server) detach(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.BridgeSessions.Set(float64(n))
}

// Frame types a shard may send; anything else is counted as "unknown".
var inbound = map[string]bool{
	protocol.TypeHello:    true,
	protocol.TypeSignal:   true,
	protocol.TypeRegister: true,
	protocol.TypeUnreg:    true,
	protocol.TypeVote:     true,
	protocol.TypeStateReq: true,
}

// handleFrame routes one inbound frame and returns the reply, if any.
func (s *Server) handleFrame(msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		metrics.BridgeFramesTotal.WithLabelValues("unknown", "invalid").Inc()
		return nack("", protocol.ErrProtoBadRequest, "malformed json")
	}
	label := base.Type
	if !inbound[label] {
		label = "unknown"
	}
	if base.ProtocolVersion != protocol.Version {
		metrics.BridgeFramesTotal.WithLabelValues(label, "invalid").Inc()
		return nack(base.ReqID, protocol.ErrProtoVersion, "bad protocol_version")
	}
	if err := protocol.Validate(base.Type, msg); err != nil {
		metrics.BridgeFramesTotal.WithLabelValues(label, "invalid").Inc()
		return nack(base.ReqID, protocol.ErrProtoBadRequest, err.Error())
	}
	metrics.BridgeFramesTotal.WithLabelValues(label, "ok").Inc()

	switch base.Type {
	case protocol.TypeSignal:
		var m protocol.SignalMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return nack(base.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		return protocol.VerdictMsg{
			Type:            protocol.TypeVerdict,
			ProtocolVersion: protocol.Version,
			ReqID:           m.ReqID,
			Suppress:        s.dispatch(m),
		}

	case protocol.TypeRegister, protocol.TypeUnreg, protocol.TypeVote:
		var m protocol.CommandMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return nack(base.ReqID, protocol.ErrProtoBadRequest, err.Error())
		}
		return s.command(m)

	case protocol.TypeStateReq:
		st := s.eng.State()
		return protocol.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: protocol.Version,
			ReqID:           base.ReqID,
			Phase:           st.Phase,
			Countdown:       st.Countdown,
			NextKind:        st.NextKind,
			ActiveKind:      st.ActiveKind,
			RoundID:         st.RoundID,
			Registered:      st.Registered,
			Votes:           st.Votes,
		}
	}
	return nil
}

func (s *Server) dispatch(m protocol.SignalMsg) bool {
	var (
		target gameworld.Actor
		skill  gameworld.Skill
		item   gameworld.Item
	)
	if m.Target != nil {
		target = *m.Target
	}
	if m.Skill != nil {
		skill = *m.Skill
	}
	if m.Item != nil {
		item = *m.Item
	}

	switch m.Signal {
	case protocol.SignalAttack:
		return s.eng.OnAttack(m.Actor, target)
	case protocol.SignalSkillUse:
		return s.eng.OnSkillUse(m.Actor, target, skill)
	case protocol.SignalKill:
		s.eng.OnKill(m.Actor, target)
	case protocol.SignalNpcInteract:
		s.eng.OnNpcInteract(m.Actor, target)
	case protocol.SignalEquipItem:
		return s.eng.OnEquipItem(m.Actor, item)
	case protocol.SignalLogin:
		s.eng.OnLogin(m.Actor)
	case protocol.SignalLogout:
		s.eng.OnLogout(m.Actor)
	}
	return false
}

func (s *Server) command(m protocol.CommandMsg) protocol.AckMsg {
	var (
		err error
		key string
		arg []any
	)
	switch m.Type {
	case protocol.TypeRegister:
		err = s.eng.Register(m.Player)
		key = "event_registered"
		if errors.Is(err, engine.ErrAlreadyRegistered) {
			key = "event_already_registered"
		}
	case protocol.TypeUnreg:
		err = s.eng.Unregister(m.Player.ID)
		key = "event_unregistered"
	case protocol.TypeVote:
		err = s.eng.CastVote(m.Player, m.Kind)
		key, arg = "event_vote_accepted", []any{m.Kind}
		if errors.Is(err, engine.ErrAlreadyVoted) {
			key, arg = "event_already_voted", nil
		}
	}
	if s.cfg.Messages != nil && (err == nil || errors.Is(err, engine.ErrAlreadyRegistered) || errors.Is(err, engine.ErrAlreadyVoted)) {
		s.Notify(m.Player.ID, s.cfg.Messages.Message(m.Player, key, true, arg...))
	}

	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          m.ReqID,
		Accepted:        err == nil,
	}
	if err != nil {
		ack.Code = ackCode(err)
		ack.Message = err.Error()
	}
	return ack
}

func ackCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrRegistrationClosed), errors.Is(err, engine.ErrVotingClosed):
		return protocol.ErrPhaseClosed
	case errors.Is(err, engine.ErrAlreadyRegistered), errors.Is(err, engine.ErrAlreadyVoted):
		return protocol.ErrDuplicate
	case errors.Is(err, engine.ErrNotRegistered):
		return protocol.ErrNotFound
	case errors.Is(err, engine.ErrUnknownCandidate):
		return protocol.ErrUnknownKind
	case errors.Is(err, engine.ErrNotPlayer):
		return protocol.ErrNotPlayer
	default:
		return protocol.ErrInternal
	}
}

func nack(reqID, code, message string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          reqID,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
