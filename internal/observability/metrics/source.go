package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SourceMetrics contains raster source metrics. A nil receiver is a valid
// no-op collector.
type SourceMetrics struct {
	StrategyAttempts *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	AssetDownloads   prometheus.Counter
	DownloadErrors   prometheus.Counter
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
}

// NewSourceMetrics creates and registers the source collectors.
func NewSourceMetrics(registry prometheus.Registerer) (*SourceMetrics, error) {
	m := &SourceMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register source metrics: %w", err)
	}
	return m, nil
}

func (m *SourceMetrics) initMetrics() {
	m.StrategyAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcover_source_strategy_attempts_total",
		Help: "Raster source strategy attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcover_source_catalog_cache_hits_total",
		Help: "Catalog searches answered from cache.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcover_source_catalog_cache_misses_total",
		Help: "Catalog searches sent to the catalog.",
	})

	m.AssetDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcover_source_asset_downloads_total",
		Help: "Raster assets downloaded.",
	})

	m.DownloadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcover_source_asset_download_errors_total",
		Help: "Raster asset downloads that failed.",
	})

	m.DownloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "landcover_source_asset_download_bytes_total",
		Help: "Bytes of raster assets downloaded.",
	})

	m.DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "landcover_source_asset_download_duration_seconds",
		Help:    "Duration of raster asset downloads in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
}

// RecordAttempt counts a strategy attempt.
func (m *SourceMetrics) RecordAttempt(strategy, outcome string) {
	if m == nil {
		return
	}
	m.StrategyAttempts.WithLabelValues(strategy, outcome).Inc()
}

// IncrementCacheHits increases the catalog cache hit counter by one.
func (m *SourceMetrics) IncrementCacheHits() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// IncrementCacheMisses increases the catalog cache miss counter by one.
func (m *SourceMetrics) IncrementCacheMisses() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordDownload records one asset download.
func (m *SourceMetrics) RecordDownload(bytes int64, seconds float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DownloadErrors.Inc()
		return
	}
	m.AssetDownloads.Inc()
	m.DownloadBytes.Add(float64(bytes))
	m.DownloadDuration.Observe(seconds)
}

// Collect implements the prometheus.Collector interface.
func (m *SourceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.StrategyAttempts.Collect(ch)
	ch <- m.CacheHits
	ch <- m.CacheMisses
	ch <- m.AssetDownloads
	ch <- m.DownloadErrors
	ch <- m.DownloadBytes
	ch <- m.DownloadDuration
}

// Describe implements the prometheus.Collector interface.
func (m *SourceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.StrategyAttempts.Describe(ch)
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.AssetDownloads.Desc()
	ch <- m.DownloadErrors.Desc()
	ch <- m.DownloadBytes.Desc()
	ch <- m.DownloadDuration.Desc()
}
