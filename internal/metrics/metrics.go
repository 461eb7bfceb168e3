package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "pun_archive_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"
)

// Ingest holds the collectors updated by sync runs.
// A nil *Ingest is valid and records nothing.
type Ingest struct {
	fetchTotal     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	decodeErrors   prometheus.Counter
	recordsAdded   prometheus.Counter
	conflicts      prometheus.Counter
	invalidRecords prometheus.Counter
	violations     prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewIngest creates and registers the ingest collectors on reg.
func NewIngest(reg prometheus.Registerer) *Ingest {
	m := &Ingest{
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_total",
				Help: "Total range fetches by result",
			},
			[]string{"result"},
		),
		fetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Range fetch latency in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "decode_errors_total",
			Help: "Total payload entries that failed to decode",
		}),
		recordsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "records_added_total",
			Help: "Total hourly records added to the dataset",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "merge_conflicts_total",
			Help: "Total incoming records discarded because the key already had a different price",
		}),
		invalidRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "invalid_records_total",
			Help: "Total records rejected by DST resolution",
		}),
		violations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "contiguity_violations",
			Help: "Dates with an incomplete hour set after the last merge",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last sync run that persisted the dataset",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.fetchTotal,
			m.fetchLatency,
			m.decodeErrors,
			m.recordsAdded,
			m.conflicts,
			m.invalidRecords,
			m.violations,
			m.lastSuccess,
		)
	}
	return m
}

func (m *Ingest) ObserveFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(result).Inc()
	m.fetchLatency.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Ingest) AddDecodeErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.decodeErrors.Add(float64(n))
}

// ObserveMerge records the outcome of one merge.
func (m *Ingest) ObserveMerge(added, conflicts, invalid, violations int) {
	if m == nil {
		return
	}
	m.recordsAdded.Add(float64(added))
	m.conflicts.Add(float64(conflicts))
	m.invalidRecords.Add(float64(invalid))
	m.violations.Set(float64(violations))
}

func (m *Ingest) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}
