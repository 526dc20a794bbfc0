// Package roster is the participant list a running event keeps. Event
// handlers embed a Roster and hand it to the engine through Participants().
package roster

import (
	"sort"
	"sync"

	"eventengine.ai/internal/gameworld"
)

type Roster struct {
	mu      sync.RWMutex
	members map[int32]*gameworld.Participant
}

func New() *Roster {
	return &Roster{members: map[int32]*gameworld.Participant{}}
}

// Add enrolls p, remembering its current title so it can be restored when the
// player leaves. It returns false if p is already enrolled.
func (r *Roster) Add(p gameworld.Actor, instanceID int, team string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[p.ID]; ok {
		return false
	}
	r.members[p.ID] = &gameworld.Participant{
		Player:             p,
		OriginalTitle:      p.Title,
		OriginalTitleColor: p.TitleColor,
		InstanceID:         instanceID,
		Team:               team,
	}
	return true
}

// Contains reports whether the actor takes part in the event. Summons are
// resolved through their owner.
func (r *Roster) Contains(a gameworld.Actor) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[a.ControllerID()]
	return ok
}

// Get returns a copy of the participant record.
func (r *Roster) Get(playerID int32) (gameworld.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[playerID]
	if !ok {
		return gameworld.Participant{}, false
	}
	return *m, true
}

func (r *Roster) Remove(playerID int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[playerID]; !ok {
		return false
	}
	delete(r.members, playerID)
	return true
}

// Update applies fn to the participant under the roster lock.
func (r *Roster) Update(playerID int32, fn func(*gameworld.Participant)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[playerID]
	if !ok {
		return false
	}
	fn(m)
	return true
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// All returns copies of every participant ordered by player id.
func (r *Roster) All() []gameworld.Participant {
	r.mu.RLock()
	out := make([]gameworld.Participant, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Player.ID < out[j].Player.ID })
	return out
}
