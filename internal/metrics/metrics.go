// Package metrics holds the prometheus collectors shared across pipeline
// phases. Promoting the teacher's indirect prometheus/client_golang
// dependency to direct use: every phase that used to only log progress
// (see the teacher's import.go "progress %d/%d, eta %v" lines) now also
// updates a collector here.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	TasksProduced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "junctions_tasks_produced_total",
		Help: "Tasks handed to a worker queue, by phase.",
	}, []string{"phase"})

	TasksConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "junctions_tasks_consumed_total",
		Help: "Tasks drained from a worker queue, by phase.",
	}, []string{"phase"})

	CandidateMasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "junctions_candidate_masks_in_flight",
		Help: "Candidate masks currently buffered awaiting the confirmation pass.",
	})

	FilterOverflows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "junctions_cuckoo_filter_overflow_total",
		Help: "Cuckoo filter Add failures (fatal).",
	})

	RoundDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "junctions_round_duration_seconds",
		Help:    "Wall time of one round's filter-fill/candidate/confirm passes.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"round"})
)

func init() {
	prometheus.MustRegister(TasksProduced, TasksConsumed, CandidateMasksInFlight, FilterOverflows, RoundDuration)
}

// Serve starts the metrics HTTP listener in the background, mirroring the
// teacher's "go func() { log.Println(http.ListenAndServe(*pprof, nil)) }()"
// idiom for its optional -pprof flag (see import.go, filter.go,
// ref2genome.go).
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		log.Println(http.ListenAndServe(addr, mux))
	}()
}
