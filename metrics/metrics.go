// Package metrics exposes Prometheus counters and histograms for the
// adapter's callback surface and blob store calls (§6.2). Wiring it costs
// each callback one labeled counter increment; it is not part of the core
// adapter contract and a mount with MetricsAddr == "" simply never starts
// the HTTP server that scrapes these.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallbacksTotal counts every OS callback the adapter receives, by
	// which callback and whether it succeeded.
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobmount_callbacks_total",
			Help: "Total number of OS callbacks handled by the adapter",
		},
		[]string{"callback", "result"},
	)

	CallbackDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobmount_callback_duration_seconds",
			Help:    "OS callback handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"callback"},
	)

	// BlobStoreOpsTotal counts every call made to the backing object
	// store, by operation and the ErrorKind it resulted in.
	BlobStoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobmount_blobstore_ops_total",
			Help: "Total number of backing object store operations",
		},
		[]string{"operation", "kind"},
	)

	BlobStoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobmount_blobstore_op_duration_seconds",
			Help:    "Backing object store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CacheHitsTotal / CacheMissesTotal track the MetadataCache hit rate.
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobmount_cache_hits_total",
			Help: "Total number of metadata cache hits",
		},
		[]string{"kind"}, // "item" or "listing"
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobmount_cache_misses_total",
			Help: "Total number of metadata cache misses",
		},
		[]string{"kind"},
	)

	// OpenHandles is the current number of open FileContext handles.
	OpenHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blobmount_open_handles",
			Help: "Number of currently open file handles",
		},
	)

	// StickyErrorsTotal counts cleanup-time failures recorded to the
	// journal (§7).
	StickyErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobmount_sticky_errors_total",
			Help: "Total number of cleanup-time failures recorded to the sticky-error journal",
		},
		[]string{"op"},
	)
)
