package metadata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tmdbRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marquee_tmdb_requests_total",
	Help: "Total number of TMDB API requests, by endpoint and status class.",
}, []string{"endpoint", "status"})
