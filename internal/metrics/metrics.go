// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/mysphere/internal/model"
)

const namespace = "mysphere"

// Metrics holds every collector. Register them once per Registerer.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	txUpdates      *prometheus.CounterVec
	fusionOutcomes *prometheus.CounterVec
	quoteDecisions *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	reg            prometheus.Registerer
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		txUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_updates_total",
				Help:      "Contract write phases by method",
			},
			[]string{"method", "phase"},
		),
		fusionOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fusion_outcomes_total",
				Help:      "Confirmed fusion bonuses by kind",
			},
			[]string{"outcome"},
		),
		quoteDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_decisions_total",
				Help:      "Moderation decisions by resulting status",
			},
			[]string{"status"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled maintenance runs by job and result",
			},
			[]string{"job", "result"},
		),
		reg: reg,
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.txUpdates,
		m.fusionOutcomes,
		m.quoteDecisions,
		m.jobRuns,
	)
	return m
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTx counts a transaction phase and, for confirmed fusions, its bonuses
func (m *Metrics) ObserveTx(u model.TxUpdate) {
	m.txUpdates.WithLabelValues(string(u.Method), string(u.Phase)).Inc()

	if u.Phase != model.TxConfirmed || u.Fusion == nil {
		return
	}
	f := u.Fusion
	if !f.BonusLevel && !f.RarityUpgraded && !f.SpecialAbility {
		m.fusionOutcomes.WithLabelValues("plain").Inc()
	}
	if f.BonusLevel {
		m.fusionOutcomes.WithLabelValues("bonus_level").Inc()
	}
	if f.RarityUpgraded {
		m.fusionOutcomes.WithLabelValues("rarity_upgrade").Inc()
	}
	if f.SpecialAbility {
		m.fusionOutcomes.WithLabelValues("special_ability").Inc()
	}
}

// ObserveQuote counts a moderation decision
func (m *Metrics) ObserveQuote(q *model.Quote) {
	m.quoteDecisions.WithLabelValues(string(q.Status)).Inc()
}

// JobRun records the result of a scheduled job
func (m *Metrics) JobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// WatchStreamClients exposes the live stream connection count
func (m *Metrics) WatchStreamClients(count func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected SSE and WebSocket clients",
		},
		func() float64 { return float64(count()) },
	))
}
