package carousel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session ids in labels.
var (
	sessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_carousel_sessions_live",
		Help: "Current number of open carousel controllers.",
	})

	playersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_players_created_total",
		Help: "Total number of player instances created.",
	})

	playersDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_players_destroyed_total",
		Help: "Total number of player instances torn down.",
	})

	qualityDowngrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_quality_downgrades_total",
		Help: "Total number of quality rung downgrades, by target rung.",
	}, []string{"quality"})

	providerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_player_errors_total",
		Help: "Total number of player provider errors, by stage.",
	}, []string{"stage"})

	clipResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_clip_resolutions_total",
		Help: "Total number of trailer resolutions, by outcome (found/none).",
	}, []string{"outcome"})
)
