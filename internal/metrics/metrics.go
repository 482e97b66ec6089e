// Package metrics exposes the world server core's Prometheus collectors,
// grounded on the teacher's internal/app/metrics package.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	tokenCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worldserver",
		Subsystem: "auth",
		Name:      "token_cache_size",
		Help:      "Current number of cached verified principals.",
	})

	tokenCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worldserver",
		Subsystem: "auth",
		Name:      "token_cache_evictions_total",
		Help:      "Total number of token cache entries evicted.",
	})

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worldserver",
		Subsystem: "session",
		Name:      "active_sessions",
		Help:      "Current number of open websocket sessions.",
	})

	framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worldserver",
		Subsystem: "session",
		Name:      "frames_dropped_total",
		Help:      "Total number of inbound frames dropped.",
	}, []string{"reason"})

	harvests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worldserver",
		Subsystem: "environment",
		Name:      "harvests_total",
		Help:      "Total number of harvest attempts.",
	}, []string{"result"})

	respawns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worldserver",
		Subsystem: "environment",
		Name:      "respawns_total",
		Help:      "Total number of objects respawned.",
	})

	entityCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worldserver",
		Subsystem: "entity",
		Name:      "tracked_entities",
		Help:      "Current number of tracked entities.",
	})
)

func init() {
	Registry.MustRegister(
		tokenCacheSize,
		tokenCacheEvictions,
		activeSessions,
		framesDropped,
		harvests,
		respawns,
		entityCount,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetTokenCacheSize records the token cache's current entry count.
func SetTokenCacheSize(n int) { tokenCacheSize.Set(float64(n)) }

// IncTokenCacheEvictions records an eviction sweep removing n entries.
func IncTokenCacheEvictions(n int) { tokenCacheEvictions.Add(float64(n)) }

// SetActiveSessions records the hub's current open session count.
func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

// IncFramesDropped records a dropped inbound frame, labeled by reason
// ("rate_limit" or "too_large").
func IncFramesDropped(reason string) { framesDropped.WithLabelValues(reason).Inc() }

// IncHarvest records a harvest attempt's outcome ("success", "too_far",
// "already_harvested", "not_found").
func IncHarvest(result string) { harvests.WithLabelValues(result).Inc() }

// IncRespawn records one object respawning.
func IncRespawn() { respawns.Inc() }

// SetEntityCount records the entity registry's current tracked count.
func SetEntityCount(n int) { entityCount.Set(float64(n)) }
