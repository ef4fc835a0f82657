// Package metrics exposes Prometheus counters for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamebox_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	LikeToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebox_like_toggles_total",
		Help: "Like toggles by kind and resulting state.",
	}, []string{"kind", "state"})

	FollowChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebox_follow_changes_total",
		Help: "Follow, unfollow and rejected follow attempts.",
	}, []string{"result"})

	Degraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebox_degraded_responses_total",
		Help: "Read endpoints that answered with an empty payload after an error.",
	}, []string{"endpoint"})

	IGDBRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebox_igdb_requests_total",
		Help: "IGDB lookups by operation and outcome.",
	}, []string{"op", "outcome"})

	RealtimeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gamebox_realtime_sessions",
		Help: "Open realtime websocket sessions.",
	})
)

var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(RequestDuration, LikeToggles, FollowChanges, Degraded, IGDBRequests, RealtimeSessions)
	return r
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Middleware records request latency by route pattern, so ids in paths do not
// explode label cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		RequestDuration.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func State(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
