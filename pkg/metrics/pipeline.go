package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestMetrics instruments the upload pipeline. All methods are safe on a
// nil receiver.
type IngestMetrics struct {
	uploads        *prometheus.CounterVec
	uploadDuration prometheus.Histogram
	uploadBytes    prometheus.Histogram
	ocrDuration    prometheus.Histogram
	hashLookups    *prometheus.CounterVec
	quotaDeferred  prometheus.Counter
}

// NewIngestMetrics creates ingestion metrics, or nil when metrics are
// disabled.
func NewIngestMetrics() *IngestMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &IngestMetrics{
		uploads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmirror_ingest_uploads_total",
				Help: "Total page uploads by outcome",
			},
			[]string{"status"}, // completed, cached, pending_quota, failed, rejected
		),
		uploadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rmirror_ingest_upload_duration_seconds",
				Help:    "End-to-end upload handling duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		uploadBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rmirror_ingest_upload_bytes",
				Help:    "Size of uploaded source blobs",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB..16MiB
			},
		),
		ocrDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rmirror_ingest_ocr_duration_seconds",
				Help:    "OCR provider call duration",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
		),
		hashLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmirror_ingest_hash_lookups_total",
				Help: "Content-hash dedup lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
		quotaDeferred: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "rmirror_ingest_quota_deferred_total",
				Help: "Uploads deferred because the OCR quota was exhausted",
			},
		),
	}
}

// RecordUpload records one handled upload.
func (m *IngestMetrics) RecordUpload(status string, bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(status).Inc()
	m.uploadDuration.Observe(duration.Seconds())
	m.uploadBytes.Observe(float64(bytes))
}

// RecordOCR records one OCR provider call.
func (m *IngestMetrics) RecordOCR(duration time.Duration) {
	if m == nil {
		return
	}
	m.ocrDuration.Observe(duration.Seconds())
}

// RecordHashLookup records a dedup lookup outcome.
func (m *IngestMetrics) RecordHashLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.hashLookups.WithLabelValues(result).Inc()
}

// RecordQuotaDeferred records an upload deferred to pending_quota.
func (m *IngestMetrics) RecordQuotaDeferred() {
	if m == nil {
		return
	}
	m.quotaDeferred.Inc()
}

// SyncMetrics instruments the sync worker pool. All methods are safe on a
// nil receiver.
type SyncMetrics struct {
	items        *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec
	queueDepth   *prometheus.GaugeVec
	leaseExpired prometheus.Counter
	retries      prometheus.Counter
}

// NewSyncMetrics creates sync metrics, or nil when metrics are disabled.
func NewSyncMetrics() *SyncMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &SyncMetrics{
		items: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rmirror_sync_items_total",
				Help: "Processed work items by kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: done, retried, failed
		),
		itemDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rmirror_sync_item_duration_seconds",
				Help:    "Work item processing duration by kind",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rmirror_sync_queue_depth",
				Help: "Work items per queue status",
			},
			[]string{"status"},
		),
		leaseExpired: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "rmirror_sync_lease_expired_total",
				Help: "Leases reclaimed from stalled workers",
			},
		),
		retries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "rmirror_sync_retries_total",
				Help: "Work items requeued after a retryable failure",
			},
		),
	}
}

// RecordItem records one processed work item.
func (m *SyncMetrics) RecordItem(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(kind, outcome).Inc()
	m.itemDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetQueueDepth publishes current queue depth per status.
func (m *SyncMetrics) SetQueueDepth(depths map[string]int64) {
	if m == nil {
		return
	}
	for status, n := range depths {
		m.queueDepth.WithLabelValues(status).Set(float64(n))
	}
}

// RecordLeaseExpired records reclaimed leases.
func (m *SyncMetrics) RecordLeaseExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.leaseExpired.Add(float64(n))
}

// RecordRetry records a requeued work item.
func (m *SyncMetrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
