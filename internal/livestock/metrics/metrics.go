package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for CUI allocation and health events.
// All methods are nil-safe so services can run without metrics in tests.
type Metrics struct {
	CUIsAllocated        *prometheus.CounterVec
	AllocationFailures   *prometheus.CounterVec
	AllocationDuration   prometheus.Histogram
	HealthEventsRecorded *prometheus.CounterVec
}

// New creates a new Metrics instance with all livestock metrics registered.
func New() *Metrics {
	return &Metrics{
		CUIsAllocated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_cuis_allocated_total",
			Help: "Total number of CUIs minted, by partition",
		}, []string{"species_digit", "region_code"}),
		AllocationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_cui_allocation_failures_total",
			Help: "Total number of failed CUI allocations, by reason",
		}, []string{"reason"}),
		AllocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sniugb_cui_allocation_duration_seconds",
			Help:    "Duration of animal registration including partition lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		HealthEventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_health_events_recorded_total",
			Help: "Total number of health events recorded, by resulting condition",
		}, []string{"condition"}),
	}
}

func (m *Metrics) IncrementAllocated(speciesDigit, regionCode int) {
	if m == nil {
		return
	}
	m.CUIsAllocated.WithLabelValues(strconv.Itoa(speciesDigit), strconv.Itoa(regionCode)).Inc()
}

func (m *Metrics) IncrementAllocationFailure(reason string) {
	if m == nil {
		return
	}
	m.AllocationFailures.WithLabelValues(reason).Inc()
}

// ObserveAllocation records the duration of a registration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAllocation(start time.Time) {
	if m == nil {
		return
	}
	m.AllocationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementHealthEvent(condition string) {
	if m == nil {
		return
	}
	m.HealthEventsRecorded.WithLabelValues(condition).Inc()
}
