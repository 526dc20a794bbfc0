// Package driver advances the engine through its phase cycle once per tick
// and builds the handler of each round.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventengine.ai/internal/catalogs"
	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/engine/clock"
	"eventengine.ai/internal/gameworld"
	"eventengine.ai/internal/metrics"
	"eventengine.ai/internal/tuning"
)

var ErrUnknownKind = errors.New("driver: no factory for event kind")

// RoundSpec is what a factory gets to build one round.
type RoundSpec struct {
	ID       string
	Kind     string
	Def      catalogs.EventDef
	Players  []gameworld.Actor
	World    gameworld.World
	Messages engine.Messenger
	Logger   *log.Logger
}

type Factory func(spec RoundSpec) (engine.Handler, error)

const (
	OutcomeCompleted = "completed"
	OutcomeFinished  = "finished"
	OutcomeCancelled = "cancelled"
)

type RoundRecord struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind,omitempty"`
	Outcome      string         `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	Votes        map[string]int `json:"votes"`
	Registered   int            `json:"registered"`
	Participants int            `json:"participants"`
	Faults       int            `json:"faults"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at"`
}

type RoundSink interface {
	WriteRound(rec RoundRecord) error
}

type Config struct {
	Manager  *engine.Manager
	Tuning   tuning.Tuning
	Catalog  *catalogs.EventCatalog
	World    gameworld.World
	Messages engine.Messenger
	Logger   *log.Logger

	Now func() time.Time
}

type Driver struct {
	mgr      *engine.Manager
	tuning   tuning.Tuning
	catalog  *catalogs.EventCatalog
	world    gameworld.World
	messages engine.Messenger
	log      *log.Logger
	now      func() time.Time

	// Serializes ticks with factory registration and sink changes.
	mu        sync.Mutex
	factories map[string]Factory
	sinks     []RoundSink

	// Captured when voting closes; EndRound clears the live tallies.
	votes      map[string]int
	registered int
}

func New(cfg Config) (*Driver, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("driver: nil manager")
	}
	d := &Driver{
		mgr:       cfg.Manager,
		tuning:    cfg.Tuning,
		catalog:   cfg.Catalog,
		world:     cfg.World,
		messages:  cfg.Messages,
		log:       cfg.Logger,
		now:       cfg.Now,
		factories: map[string]Factory{},
	}
	if d.catalog == nil {
		d.catalog = &catalogs.EventCatalog{ByID: map[string]catalogs.EventDef{}}
	}
	if d.world == nil {
		d.world = gameworld.NopWorld{}
	}
	if d.log == nil {
		d.log = log.New(io.Discard, "", 0)
	}
	if d.now == nil {
		d.now = func() time.Time { return time.Now().UTC() }
	}
	return d, nil
}

func (d *Driver) Register(kind string, f Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[kind] = f
}

func (d *Driver) AddSink(s RoundSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Playable filters kinds down to those with a registered factory.
func (d *Driver) Playable(kinds []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := d.factories[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Run ticks d on t until ctx is done.
func (d *Driver) Run(ctx context.Context, t *clock.Ticker) error {
	return t.Run(ctx, d.Tick)
}

// Tick decrements the countdown and, when it runs out, moves the engine to
// the next phase. A running event that reports Finished ends early.
func (d *Driver) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	m := d.mgr
	if m.IsRunning() && d.handlerFinished() {
		d.finishRound(OutcomeFinished)
		return
	}

	n := m.DecrementCountdown()
	if n > 0 {
		if !m.IsWaiting() && d.tuning.Announces(n) {
			d.broadcast("event_countdown", n)
		}
		return
	}

	switch m.Phase() {
	case engine.Waiting:
		d.openRegistration()
	case engine.Register:
		d.openVoting()
	case engine.Voting:
		d.startRound()
	case engine.Running:
		d.finishRound(OutcomeCompleted)
	}
}

func (d *Driver) openRegistration() {
	d.mgr.EndRound()
	d.votes, d.registered = nil, 0
	d.mgr.SetPhase(engine.Register)
	d.mgr.SetCountdown(d.tuning.Phases.RegisterSeconds)
	d.broadcast("event_register_open", d.tuning.Phases.RegisterSeconds)
	d.log.Printf("phase register: %ds", d.tuning.Phases.RegisterSeconds)
}

func (d *Driver) openVoting() {
	n := d.mgr.RegisteredCount()
	if n < d.tuning.MinParticipants {
		d.broadcast("event_not_enough_players", n, d.tuning.MinParticipants)
		d.cancel("", fmt.Sprintf("registered %d < %d", n, d.tuning.MinParticipants))
		return
	}
	d.mgr.SetPhase(engine.Voting)
	d.mgr.SetCountdown(d.tuning.Phases.VotingSeconds)
	d.broadcast("event_vote_open", d.tuning.Phases.VotingSeconds)
	d.log.Printf("phase voting: %d registered", n)
}

func (d *Driver) startRound() {
	m := d.mgr
	d.votes = m.VoteCounts()
	d.registered = m.RegisteredCount()

	kind, ok := m.ResolveWinningCandidate()
	if !ok {
		d.cancel("", engine.ErrNoCandidates.Error())
		return
	}
	m.SetNextKind(kind)

	f, ok := d.factories[kind]
	if !ok {
		d.log.Printf("start %s: %v", kind, ErrUnknownKind)
		d.cancel(kind, ErrUnknownKind.Error())
		return
	}
	def, _ := d.catalog.Get(kind)
	if def.MinParticipants > d.registered {
		d.broadcast("event_not_enough_players", d.registered, def.MinParticipants)
		d.cancel(kind, fmt.Sprintf("registered %d < %d for %s", d.registered, def.MinParticipants, kind))
		return
	}

	spec := RoundSpec{
		ID:       uuid.NewString(),
		Kind:     kind,
		Def:      def,
		Players:  m.RegisteredPlayers(),
		World:    d.world,
		Messages: d.messages,
		Logger:   d.log,
	}
	var h engine.Handler
	err := protect(func() error {
		var err error
		h, err = f(spec)
		return err
	})
	if err == nil && h == nil {
		err = fmt.Errorf("factory returned no handler")
	}
	if err != nil {
		d.log.Printf("start %s: build: %v", kind, err)
		d.broadcast("event_cancelled")
		d.cancel(kind, "build: "+err.Error())
		return
	}

	m.SetPhase(engine.Running)
	m.StartRound(h, kind, spec.ID)
	m.SetCountdown(d.tuning.Phases.RunningSeconds)

	if s, ok := h.(engine.Starter); ok {
		if err := protect(s.Start); err != nil {
			d.log.Printf("start %s: %v", kind, err)
			d.broadcast("event_cancelled")
			d.finishRound(OutcomeCancelled)
			return
		}
	}
	title := def.Title
	if title == "" {
		title = kind
	}
	d.broadcast("event_start", title)
	d.log.Printf("phase running: %s with %d players", kind, len(spec.Players))
}

func (d *Driver) finishRound(outcome string) {
	m := d.mgr
	info, ok := m.ActiveRound()
	h := m.ActiveHandler()
	if s, isStopper := h.(engine.Stopper); isStopper {
		if err := protect(func() error { s.Stop(); return nil }); err != nil {
			d.log.Printf("stop %s: %v", info.Kind, err)
		}
	}

	now := d.now()
	rec := RoundRecord{
		ID:           info.ID,
		Kind:         info.Kind,
		Outcome:      outcome,
		Votes:        d.votes,
		Registered:   d.registered,
		Participants: participantCount(h),
		StartedAt:    info.StartedAt,
		EndedAt:      now,
	}
	if !ok {
		rec.ID = uuid.NewString()
		rec.StartedAt = now
	}
	// Faults may have grown while stopping.
	if after, ok := m.ActiveRound(); ok {
		rec.Faults = after.Faults
	}

	m.EndRound()
	m.SetPhase(engine.Waiting)
	m.SetCountdown(d.tuning.Phases.WaitingSeconds)

	title := info.Kind
	if def, ok := d.catalog.Get(info.Kind); ok && def.Title != "" {
		title = def.Title
	}
	if outcome != OutcomeCancelled {
		d.broadcast("event_end", title)
		metrics.RoundDuration.WithLabelValues(info.Kind).Observe(rec.EndedAt.Sub(rec.StartedAt).Seconds())
	}
	d.emit(rec)
	d.log.Printf("round %s %s: %s", rec.ID, rec.Kind, outcome)
}

// cancel abandons the round being assembled and goes back to Waiting.
func (d *Driver) cancel(kind, reason string) {
	now := d.now()
	rec := RoundRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		Outcome:    OutcomeCancelled,
		Reason:     reason,
		Votes:      d.votes,
		Registered: d.registered,
		StartedAt:  now,
		EndedAt:    now,
	}
	if rec.Registered == 0 {
		rec.Registered = d.mgr.RegisteredCount()
	}
	d.mgr.EndRound()
	d.mgr.SetPhase(engine.Waiting)
	d.mgr.SetCountdown(d.tuning.Phases.WaitingSeconds)
	d.emit(rec)
	d.log.Printf("round cancelled: %s", reason)
}

func (d *Driver) emit(rec RoundRecord) {
	if rec.Votes == nil {
		rec.Votes = map[string]int{}
	}
	metrics.RoundsTotal.WithLabelValues(rec.Kind, rec.Outcome).Inc()
	for _, s := range d.sinks {
		if err := s.WriteRound(rec); err != nil {
			d.log.Printf("round sink: %v", err)
		}
	}
}

func (d *Driver) handlerFinished() bool {
	f, ok := d.mgr.ActiveHandler().(engine.Finisher)
	if !ok {
		return false
	}
	var done bool
	if err := protect(func() error { done = f.Finished(); return nil }); err != nil {
		d.log.Printf("finished: %v", err)
		return false
	}
	return done
}

func (d *Driver) broadcast(key string, args ...any) {
	if d.messages == nil {
		return
	}
	d.world.Broadcast(d.messages.Message(gameworld.Actor{}, key, true, args...))
}

func participantCount(h engine.Handler) int {
	if h == nil {
		return 0
	}
	var n int
	_ = protect(func() error {
		if l, ok := h.Participants().(interface{ Len() int }); ok {
			n = l.Len()
		}
		return nil
	})
	return n
}

// protect runs fn and turns a panic into an error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
