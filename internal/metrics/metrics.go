// Package metrics holds the Prometheus collectors of the attachment store.
// All recorders are nil-safe so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attachment_store"

// Storage tracks the storage handler.
type Storage struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	persisted      prometheus.Counter
	persistedBytes prometheus.Counter
	removed        prometheus.Counter
	failures       *prometheus.CounterVec
	stored         prometheus.Gauge
	opDuration     *prometheus.HistogramVec
}

// NewStorage registers the storage collectors with reg.
func NewStorage(reg prometheus.Registerer) *Storage {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Storage{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cache_hits_total",
			Help:      "Number of gets answered from the resolved-object cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cache_misses_total",
			Help:      "Number of gets that had to read a metadata document",
		}),
		persisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persisted_total",
			Help:      "Number of attachments written to the storage root",
		}),
		persistedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persisted_bytes_total",
			Help:      "Content bytes written to the storage root",
		}),
		removed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "removed_total",
			Help:      "Number of attachments deleted from the storage root",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "failures_total",
			Help:      "Failed storage operations",
		}, []string{"operation"}),
		stored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "attachments",
			Help:      "Number of attachment ids in the index",
		}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Duration of storage operations that touch the disk",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// RecordCacheHit increments the cache hit counter.
func (m *Storage) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *Storage) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordPersist records a successful persist of n content bytes.
func (m *Storage) RecordPersist(n int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.persisted.Inc()
	m.persistedBytes.Add(float64(n))
	m.opDuration.WithLabelValues("persist").Observe(duration.Seconds())
}

// RecordRemove records a successful remove.
func (m *Storage) RecordRemove(duration time.Duration) {
	if m == nil {
		return
	}
	m.removed.Inc()
	m.opDuration.WithLabelValues("remove").Observe(duration.Seconds())
}

// RecordFailure counts a failed operation.
func (m *Storage) RecordFailure(operation string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation).Inc()
}

// SetStored sets the size of the index.
func (m *Storage) SetStored(n int) {
	if m == nil {
		return
	}
	m.stored.Set(float64(n))
}

// Ingest tracks mailbox ingestion.
type Ingest struct {
	runs        *prometheus.CounterVec
	messages    prometheus.Counter
	attachments *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewIngest registers the ingest collectors with reg.
func NewIngest(reg prometheus.Registerer) *Ingest {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Ingest{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Mailbox ingest runs",
		}, []string{"status"}),
		messages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_total",
			Help:      "Messages processed by mailbox ingest",
		}),
		attachments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "attachments_total",
			Help:      "Attachments seen by mailbox ingest",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of a mailbox ingest run",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RecordRun records one ingest run.
func (m *Ingest) RecordRun(duration time.Duration, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(duration.Seconds())
}

// RecordMessage counts a processed message.
func (m *Ingest) RecordMessage() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

// RecordAttachment counts an attachment by result: stored, skipped or failed.
func (m *Ingest) RecordAttachment(result string) {
	if m == nil {
		return
	}
	m.attachments.WithLabelValues(result).Inc()
}

// Handler returns the metrics endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
