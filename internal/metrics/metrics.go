// file: internal/metrics/metrics.go
// version: 1.0.0
// guid: 9e0f1a2b-3c4d-5e6f-7a8b-9c0d1e2f3a4b

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	uploadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lumina",
		Name:      "uploads_total",
		Help:      "Total number of documents uploaded",
	})
	opensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lumina",
		Name:      "opens_total",
		Help:      "Total number of book open events",
	})
	pageTurnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lumina",
		Name:      "page_turns_total",
		Help:      "Total number of recorded page changes",
	})
	deletesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lumina",
		Name:      "deletes_total",
		Help:      "Total number of books deleted",
	})
	suggestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumina",
		Name:      "suggestions_total",
		Help:      "Total suggestion requests by outcome",
	}, []string{"outcome"})

	booksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumina",
		Name:      "books_total",
		Help:      "Current total number of books in the library",
	})
	streakGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumina",
		Name:      "reading_streak_days",
		Help:      "Current reading streak in days",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(uploadsTotal, opensTotal, pageTurnsTotal,
			deletesTotal, suggestionsTotal, booksGauge, streakGauge)
	})
}

// Event counters
func IncUpload()                   { uploadsTotal.Inc() }
func IncOpen()                     { opensTotal.Inc() }
func IncPageTurn()                 { pageTurnsTotal.Inc() }
func IncDelete()                   { deletesTotal.Inc() }
func IncSuggestion(outcome string) { suggestionsTotal.WithLabelValues(outcome).Inc() }

// Gauges
func SetBooks(n int)  { booksGauge.Set(float64(n)) }
func SetStreak(n int) { streakGauge.Set(float64(n)) }
