// Package registry tracks players signed up for the upcoming event round.
package registry

import (
	"sort"
	"sync"

	"eventengine.ai/internal/gameworld"
)

type Registry struct {
	mu      sync.RWMutex
	players map[int32]gameworld.Actor
}

func New() *Registry {
	return &Registry{players: map[int32]gameworld.Actor{}}
}

// Register adds p and reports whether it was not registered before.
func (r *Registry) Register(p gameworld.Actor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[p.ID]; ok {
		return false
	}
	r.players[p.ID] = p
	return true
}

// Unregister removes the player and reports whether it was registered.
func (r *Registry) Unregister(playerID int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[playerID]; !ok {
		return false
	}
	delete(r.players, playerID)
	return true
}

func (r *Registry) IsRegistered(playerID int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[playerID]
	return ok
}

func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// All returns a snapshot of the registered players ordered by object id.
func (r *Registry) All() []gameworld.Actor {
	r.mu.RLock()
	out := make([]gameworld.Actor, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.players)
}
