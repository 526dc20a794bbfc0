// Package engine coordinates server-wide mini-game events: the phase cycle,
// voting, registration, and routing of world signals to the running event.
package engine

import (
	"errors"
	"io"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"eventengine.ai/internal/engine/clock"
	"eventengine.ai/internal/engine/registry"
	"eventengine.ai/internal/engine/votes"
	"eventengine.ai/internal/gameworld"
)

// ErrNoCandidates means the event catalog enables no kinds. Callers treat the
// engine as disabled.
var ErrNoCandidates = errors.New("engine: no enabled event kinds")

// Messenger renders player-facing text in the player's language.
type Messenger interface {
	Message(player gameworld.Actor, key string, useDefaultColor bool, args ...any) string
}

type FaultEntry struct {
	Time     time.Time `json:"time"`
	RoundID  string    `json:"round_id,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Call     string    `json:"call"`
	Panicked bool      `json:"panicked,omitempty"`
	Error    string    `json:"error"`
}

type FaultSink interface {
	WriteFault(entry FaultEntry) error
}

type Config struct {
	// Kinds are the enabled candidate event kinds.
	Kinds    []string
	Messages Messenger
	World    gameworld.World
	Logger   *log.Logger

	DisableLoginNotices bool

	// Pick returns a uniform value in [0,n). Defaults to math/rand.
	Pick func(n int) int
}

type Manager struct {
	log      *log.Logger
	messages Messenger
	world    gameworld.World
	pick     func(n int) int

	loginNotices bool

	tally    *votes.Tally
	registry *registry.Registry

	phase     atomic.Int32
	countdown clock.Countdown
	nextKind  atomic.Pointer[string]
	active    atomic.Pointer[round]

	faultSink atomic.Pointer[faultSinkBox]
}

type faultSinkBox struct{ sink FaultSink }

// ValidateCandidates returns ErrNoCandidates when kinds is empty.
func ValidateCandidates(kinds []string) error {
	if len(kinds) == 0 {
		return ErrNoCandidates
	}
	return nil
}

func New(cfg Config) *Manager {
	m := &Manager{
		log:          cfg.Logger,
		messages:     cfg.Messages,
		world:        cfg.World,
		pick:         cfg.Pick,
		loginNotices: !cfg.DisableLoginNotices,
		tally:        votes.New(cfg.Kinds),
		registry:     registry.New(),
	}
	if m.log == nil {
		m.log = log.New(io.Discard, "", 0)
	}
	if m.world == nil {
		m.world = gameworld.NopWorld{}
	}
	if m.pick == nil {
		m.pick = rand.Intn
	}
	m.SetPhase(Waiting)
	return m
}

func (m *Manager) SetFaultSink(s FaultSink) { m.faultSink.Store(&faultSinkBox{sink: s}) }

// ReloadCandidates replaces the candidate kinds and drops every vote.
func (m *Manager) ReloadCandidates(kinds []string) error {
	if err := ValidateCandidates(kinds); err != nil {
		return err
	}
	m.tally.Initialize(kinds)
	return nil
}

func (m *Manager) Candidates() []string { return m.tally.Kinds() }

// State is a point-in-time view of the engine. Fields are read one by one so
// they may be mutually stale by a tick.
type State struct {
	Phase      string         `json:"phase"`
	Countdown  int            `json:"countdown"`
	NextKind   string         `json:"next_kind,omitempty"`
	ActiveKind string         `json:"active_kind,omitempty"`
	RoundID    string         `json:"round_id,omitempty"`
	Registered int            `json:"registered"`
	Votes      map[string]int `json:"votes"`
	Candidates []string       `json:"candidates"`
}

func (m *Manager) State() State {
	s := State{
		Phase:      m.Phase().String(),
		Countdown:  m.Countdown(),
		NextKind:   m.NextKind(),
		Registered: m.registry.Len(),
		Votes:      m.tally.Counts(),
		Candidates: m.tally.Kinds(),
	}
	if r := m.active.Load(); r != nil {
		s.ActiveKind = r.kind
		s.RoundID = r.id
	}
	return s
}
