// Package metrics exposes Prometheus collectors for the event engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DispatchTotal counts world signals by outcome: "passthrough" (no active
// event), "forwarded", "suppressed" or "fault".
var DispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventengine_dispatch_total",
		Help: "World signals dispatched to the active event",
	},
	[]string{"signal", "outcome"},
)

// HandlerFaultsTotal counts errors and panics raised by event handlers.
var HandlerFaultsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventengine_handler_faults_total",
		Help: "Faults raised by active event handlers",
	},
	[]string{"call"},
)

// VotesTotal counts accepted votes per candidate kind.
var VotesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventengine_votes_total",
		Help: "Accepted event votes",
	},
	[]string{"kind"},
)

// RegistrationsTotal counts register/unregister operations that changed state.
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventengine_registrations_total",
		Help: "Player registration changes",
	},
	[]string{"action"},
)

// RoundsTotal counts finished rounds by kind and outcome.
var RoundsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventengine_rounds_total",
		Help: "Event rounds by outcome",
	},
	[]string{"kind", "outcome"},
)

// RoundDuration tracks how long running events last.
var RoundDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "eventengine_round_duration_seconds",
		Help:    "Running time of event rounds",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	},
	[]string{"kind"},
)

// Phase is 1 for the current engine phase and 0 for the others.
var Phase = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "eventengine_phase",
		Help: "Current engine phase (1 for current, 0 otherwise)",
	},
	[]string{"phase"},
)

// Countdown is the seconds left in the current phase.
var Countdown = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "eventengine_countdown_seconds",
		Help: "Seconds left in the current phase",
	},
)

// RegisteredPlayers is the size of the registration list.
var RegisteredPlayers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "eventengine_registered_players",
		Help: "Players registered for the next round",
	},
)

// BridgeSessions is the number of connected game-server shards.
var BridgeSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "eventengine_bridge_sessions",
		Help: "Connected game server shards",
	},
)

// BridgeFramesTotal counts bridge frames by type and result. Inbound frames
// are ok, invalid or rejected; outbound pushes are pushed or dropped.
var BridgeFramesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eventengine_bridge_frames_total",
		Help: "Bridge frames by type and result",
	},
	[]string{"type", "result"},
)

// SetPhase marks current as the active phase among all.
func SetPhase(current string, all []string) {
	for _, p := range all {
		v := 0.0
		if p == current {
			v = 1
		}
		Phase.WithLabelValues(p).Set(v)
	}
}
