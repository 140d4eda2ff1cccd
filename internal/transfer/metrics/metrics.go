package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for transfer requests and the expiry sweeper.
// All methods are nil-safe.
type Metrics struct {
	TransfersCreated     prometheus.Counter
	TransfersResolved    *prometheus.CounterVec
	PendingConflicts     prometheus.Counter
	BadVerificationCodes prometheus.Counter
	NotificationFailures *prometheus.CounterVec
	SweepRuns            *prometheus.CounterVec
	SweepExpired         prometheus.Counter
	SweepDuration        prometheus.Histogram
}

// New creates a new Metrics instance with all transfer metrics registered.
func New() *Metrics {
	return &Metrics{
		TransfersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sniugb_transfers_created_total",
			Help: "Total number of transfer requests created",
		}),
		TransfersResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_transfers_resolved_total",
			Help: "Total number of transfer requests leaving pending, by outcome",
		}, []string{"outcome"}),
		PendingConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sniugb_transfer_pending_conflicts_total",
			Help: "Total number of create attempts rejected because an animal was already claimed",
		}),
		BadVerificationCodes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sniugb_transfer_bad_verification_codes_total",
			Help: "Total number of approvals rejected for a wrong verification code",
		}),
		NotificationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_transfer_notification_failures_total",
			Help: "Total number of notifications that could not be delivered, by kind",
		}, []string{"kind"}),
		SweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_expiry_sweep_runs_total",
			Help: "Total number of expiry sweeps, by result",
		}, []string{"result"}),
		SweepExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sniugb_expiry_sweep_expired_total",
			Help: "Total number of pending transfers expired by the sweeper",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniugb_expiry_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.TransfersCreated.Inc()
}

// IncrementResolved counts a terminal transition ("approved", "rejected", "expired").
func (m *Metrics) IncrementResolved(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TransfersResolved.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) IncrementPendingConflict() {
	if m == nil {
		return
	}
	m.PendingConflicts.Inc()
}

func (m *Metrics) IncrementBadVerificationCode() {
	if m == nil {
		return
	}
	m.BadVerificationCodes.Inc()
}

func (m *Metrics) IncrementNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(kind).Inc()
}

// ObserveSweep records one sweeper run. result is "ok", "error" or "skipped".
func (m *Metrics) ObserveSweep(start time.Time, result string, expired int) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(result).Inc()
	m.SweepDuration.Observe(time.Since(start).Seconds())
	if expired > 0 {
		m.SweepExpired.Add(float64(expired))
	}
}
