// Package votes keeps the per-round event vote tally.
package votes

import (
	"sort"
	"sync"
)

// Tally maps each candidate event kind to the set of players that voted for
// it. A voter is counted at most once per round: the first vote wins until it
// is retracted.
type Tally struct {
	mu     sync.RWMutex
	byKind map[string]map[int32]struct{}
	voted  map[int32]struct{}
}

func New(kinds []string) *Tally {
	t := &Tally{}
	t.Initialize(kinds)
	return t
}

// Initialize replaces the candidate set with one empty voter set per kind.
func (t *Tally) Initialize(kinds []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKind = make(map[string]map[int32]struct{}, len(kinds))
	for _, k := range kinds {
		t.byKind[k] = map[int32]struct{}{}
	}
	t.voted = map[int32]struct{}{}
}

// Clear empties every voter set but keeps the candidate kinds.
func (t *Tally) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.byKind {
		clear(t.byKind[k])
	}
	clear(t.voted)
}

// Cast records voter's choice. It returns false when the voter already voted
// this round or kind is not a candidate.
func (t *Tally) Cast(voter int32, kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.byKind[kind]
	if !ok {
		return false
	}
	if _, dup := t.voted[voter]; dup {
		return false
	}
	t.voted[voter] = struct{}{}
	set[voter] = struct{}{}
	return true
}

// Retract removes voter's vote, if any.
func (t *Tally) Retract(voter int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.voted[voter]; !ok {
		return false
	}
	delete(t.voted, voter)
	for _, set := range t.byKind {
		if _, ok := set[voter]; ok {
			delete(set, voter)
			break
		}
	}
	return true
}

func (t *Tally) HasVoted(voter int32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.voted[voter]
	return ok
}

func (t *Tally) CountFor(kind string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byKind[kind])
}

func (t *Tally) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, set := range t.byKind {
		n += len(set)
	}
	return n
}

// Kinds returns the candidate kinds in sorted order.
func (t *Tally) Kinds() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byKind))
	for k := range t.byKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Counts returns a copy of the per-kind vote counts.
func (t *Tally) Counts() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.byKind))
	for k, set := range t.byKind {
		out[k] = len(set)
	}
	return out
}

// Leaders returns the kinds tied at the highest count, sorted, and that count.
// With no votes at all every kind is a leader at zero.
func (t *Tally) Leaders() ([]string, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	best := 0
	var top []string
	for k, set := range t.byKind {
		n := len(set)
		switch {
		case n > best:
			best = n
			top = append(top[:0], k)
		case n == best:
			top = append(top, k)
		}
	}
	sort.Strings(top)
	return top, best
}
