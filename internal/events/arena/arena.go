// Package arena implements the all-vs-all and team-vs-team event kinds:
// participants fight inside one instance until a single side is left.
package arena

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/engine/driver"
	"eventengine.ai/internal/engine/roster"
	"eventengine.ai/internal/gameworld"
)

const (
	defaultInstance = 9000
	titleColor      = 0x00CCFF
)

type Params struct {
	// Teams below 2 means every participant fights alone.
	Teams       int   `json:"teams"`
	BannedItems []int `json:"banned_items"`
	Instance    int   `json:"instance"`
}

type Arena struct {
	kind     string
	title    string
	params   Params
	banned   map[int]bool
	roster   *roster.Roster
	world    gameworld.World
	messages engine.Messenger
	log      *log.Logger

	mu      sync.Mutex
	dead    map[int32]bool
	stopped bool
}

// Factory builds an arena round from the catalog entry and the registered
// players.
func Factory(spec driver.RoundSpec) (engine.Handler, error) {
	var p Params
	if err := spec.Def.DecodeParams(&p); err != nil {
		return nil, err
	}
	if p.Teams < 0 {
		return nil, fmt.Errorf("arena %s: teams must be >= 0", spec.Kind)
	}
	return New(spec.Kind, spec.Def.Title, p, spec.Players, spec.World, spec.Messages, spec.Logger), nil
}

func New(kind, title string, p Params, players []gameworld.Actor, w gameworld.World, msgs engine.Messenger, logger *log.Logger) *Arena {
	if p.Instance == 0 {
		p.Instance = defaultInstance
	}
	if title == "" {
		title = kind
	}
	if w == nil {
		w = gameworld.NopWorld{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	a := &Arena{
		kind:     kind,
		title:    title,
		params:   p,
		banned:   map[int]bool{},
		roster:   roster.New(),
		world:    w,
		messages: msgs,
		log:      logger,
		dead:     map[int32]bool{},
	}
	for _, id := range p.BannedItems {
		a.banned[id] = true
	}

	sorted := append([]gameworld.Actor(nil), players...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i, pl := range sorted {
		if !pl.IsPlayer() {
			continue
		}
		a.roster.Add(pl, p.Instance, a.teamFor(i))
	}
	return a
}

func (a *Arena) teamFor(i int) string {
	if a.params.Teams < 2 {
		return ""
	}
	return fmt.Sprintf("team-%d", i%a.params.Teams+1)
}

// Start dresses every participant in the event title.
func (a *Arena) Start() error {
	if a.roster.Len() == 0 {
		return fmt.Errorf("arena %s: no participants", a.kind)
	}
	for _, p := range a.roster.All() {
		label := "[" + a.title + "]"
		if p.Team != "" {
			label = "[" + p.Team + "]"
		}
		a.world.SetTitle(p.Player.ID, label, titleColor)
	}
	return nil
}

// Stop puts every remaining participant back the way it came in.
func (a *Arena) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	if w := a.winner(); w != "" && a.messages != nil {
		a.world.Broadcast(a.messages.Message(gameworld.Actor{}, "event_arena_winner", true, w))
	}
	for _, p := range a.roster.All() {
		a.world.SetTitle(p.Player.ID, p.OriginalTitle, p.OriginalTitleColor)
		a.world.RemoveFromInstance(p.InstanceID, p.Player.ID)
		a.roster.Remove(p.Player.ID)
	}
}

func (a *Arena) Participants() engine.Participants { return a.roster }

// OnAttack keeps participants and outsiders apart, and blocks friendly fire
// and attacks by fallen participants.
func (a *Arena) OnAttack(attacker, target gameworld.Actor) (bool, error) {
	return a.blocked(attacker, target), nil
}

// OnSkillUse applies the attack rules to skills aimed at someone else.
func (a *Arena) OnSkillUse(caster, target gameworld.Actor, _ gameworld.Skill) (bool, error) {
	if !target.IsPlayable() || target.ControllerID() == caster.ControllerID() {
		return false, nil
	}
	return a.blocked(caster, target), nil
}

func (a *Arena) blocked(attacker, target gameworld.Actor) bool {
	atk, atkIn := a.roster.Get(attacker.ControllerID())
	if !target.IsPlayable() {
		return false
	}
	tgt, tgtIn := a.roster.Get(target.ControllerID())
	if atkIn != tgtIn {
		return true
	}
	if !atkIn {
		return false
	}
	if a.isDead(atk.Player.ID) || a.isDead(tgt.Player.ID) {
		return true
	}
	return atk.Team != "" && atk.Team == tgt.Team
}

func (a *Arena) OnKill(killer, victim gameworld.Actor) error {
	if !victim.IsPlayer() || !a.roster.Contains(victim) {
		return nil
	}
	a.roster.Update(killer.ControllerID(), func(p *gameworld.Participant) { p.Kills++ })
	return nil
}

func (a *Arena) OnDeath(player gameworld.Actor) error {
	if !a.roster.Update(player.ID, func(p *gameworld.Participant) { p.Deaths++ }) {
		return nil
	}
	a.mu.Lock()
	a.dead[player.ID] = true
	a.mu.Unlock()
	return nil
}

func (a *Arena) OnNpcInteract(_, _ gameworld.Actor) error { return nil }

// OnUseItem blocks participants from equipping banned items.
func (a *Arena) OnUseItem(player gameworld.Actor, item gameworld.Item) (bool, error) {
	if !a.banned[item.ItemID] {
		return false, nil
	}
	return a.roster.Contains(player), nil
}

// Finished reports whether at most one side still has someone standing.
func (a *Arena) Finished() bool {
	return len(a.standing()) <= 1
}

// standing maps each side with survivors to its survivors' names.
func (a *Arena) standing() map[string][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := map[string][]string{}
	for _, p := range a.roster.All() {
		if a.dead[p.Player.ID] {
			continue
		}
		side := p.Team
		if side == "" {
			side = fmt.Sprintf("solo-%d", p.Player.ID)
		}
		out[side] = append(out[side], p.Player.Name)
	}
	return out
}

func (a *Arena) winner() string {
	sides := a.standing()
	if len(sides) != 1 {
		return ""
	}
	for side, names := range sides {
		if strings.HasPrefix(side, "solo-") {
			return names[0]
		}
		return side
	}
	return ""
}

func (a *Arena) isDead(id int32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dead[id]
}
