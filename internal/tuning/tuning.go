package tuning

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	StartDelaySeconds int `yaml:"start_delay_seconds"`
	TickPeriodMs      int `yaml:"tick_period_ms"`

	Phases PhaseDurations `yaml:"phases"`

	MinParticipants int   `yaml:"min_participants"`
	AnnounceSeconds []int `yaml:"announce_seconds"`
	LoginNotices    bool  `yaml:"login_notices"`
}

type PhaseDurations struct {
	WaitingSeconds  int `yaml:"waiting_seconds"`
	RegisterSeconds int `yaml:"register_seconds"`
	VotingSeconds   int `yaml:"voting_seconds"`
	RunningSeconds  int `yaml:"running_seconds"`
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		StartDelaySeconds: 10,
		TickPeriodMs:      1000,
		Phases: PhaseDurations{
			WaitingSeconds:  3600,
			RegisterSeconds: 300,
			VotingSeconds:   120,
			RunningSeconds:  1200,
		},
		MinParticipants: 2,
		AnnounceSeconds: []int{300, 120, 60, 30, 10, 5, 3, 2, 1},
		LoginNotices:    true,
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.TickPeriodMs <= 0 {
		t.TickPeriodMs = 1000
	}
	if t.StartDelaySeconds < 0 {
		t.StartDelaySeconds = 0
	}
	seen := map[int]bool{}
	out := t.AnnounceSeconds[:0]
	for _, s := range t.AnnounceSeconds {
		if s <= 0 || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	t.AnnounceSeconds = out
}

func (t Tuning) Validate() error {
	p := t.Phases
	for name, v := range map[string]int{
		"waiting_seconds":  p.WaitingSeconds,
		"register_seconds": p.RegisterSeconds,
		"voting_seconds":   p.VotingSeconds,
		"running_seconds":  p.RunningSeconds,
	} {
		if v <= 0 {
			return fmt.Errorf("phases.%s must be > 0", name)
		}
	}
	if t.MinParticipants < 0 {
		return fmt.Errorf("min_participants must be >= 0")
	}
	return nil
}

func (t Tuning) StartDelay() time.Duration {
	return time.Duration(t.StartDelaySeconds) * time.Second
}

func (t Tuning) TickPeriod() time.Duration {
	return time.Duration(t.TickPeriodMs) * time.Millisecond
}

// Announces reports whether a countdown value should be broadcast.
func (t Tuning) Announces(seconds int) bool {
	for _, s := range t.AnnounceSeconds {
		if s == seconds {
			return true
		}
	}
	return false
}
