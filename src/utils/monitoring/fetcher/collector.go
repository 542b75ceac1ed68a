package monitor_fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// State
	ContractsArchived    *prometheus.Desc
	ContractsSkipped     *prometheus.Desc
	ContractsFailed      *prometheus.Desc
	SourceFilesSaved     *prometheus.Desc
	MetadataFromFallback *prometheus.Desc
	BytecodeMatches      *prometheus.Desc
	BytecodeMismatches   *prometheus.Desc
	RequestsMade         *prometheus.Desc
	Retries              *prometheus.Desc
	CacheHits            *prometheus.Desc
	CacheMisses          *prometheus.Desc
	CacheRevalidations   *prometheus.Desc
	BytesDownloaded      *prometheus.Desc
	MessagesPublished    *prometheus.Desc

	// Errors
	PrimaryFetchError     *prometheus.Desc
	FallbackFetchError    *prometheus.Desc
	SourcesExhaustedError *prometheus.Desc
	PersistError          *prometheus.Desc
	ProvenanceError       *prometheus.Desc
	VerificationError     *prometheus.Desc
	DbStoreError          *prometheus.Desc
	NetworkError          *prometheus.Desc
	HttpStatusError       *prometheus.Desc
	RateLimitError        *prometheus.Desc
	PublishError          *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "fetcher",
	}

	return &Collector{
		ContractsArchived:    prometheus.NewDesc("contracts_archived", "", nil, labels),
		ContractsSkipped:     prometheus.NewDesc("contracts_skipped", "", nil, labels),
		ContractsFailed:      prometheus.NewDesc("contracts_failed", "", nil, labels),
		SourceFilesSaved:     prometheus.NewDesc("source_files_saved", "", nil, labels),
		MetadataFromFallback: prometheus.NewDesc("metadata_from_fallback", "", nil, labels),
		BytecodeMatches:      prometheus.NewDesc("bytecode_matches", "", nil, labels),
		BytecodeMismatches:   prometheus.NewDesc("bytecode_mismatches", "", nil, labels),
		RequestsMade:         prometheus.NewDesc("requests_made", "", nil, labels),
		Retries:              prometheus.NewDesc("retries", "", nil, labels),
		CacheHits:            prometheus.NewDesc("cache_hits", "", nil, labels),
		CacheMisses:          prometheus.NewDesc("cache_misses", "", nil, labels),
		CacheRevalidations:   prometheus.NewDesc("cache_revalidations", "", nil, labels),
		BytesDownloaded:      prometheus.NewDesc("bytes_downloaded", "", nil, labels),
		MessagesPublished:    prometheus.NewDesc("messages_published", "", nil, labels),

		PrimaryFetchError:     prometheus.NewDesc("error_primary_fetch", "", nil, labels),
		FallbackFetchError:    prometheus.NewDesc("error_fallback_fetch", "", nil, labels),
		SourcesExhaustedError: prometheus.NewDesc("error_sources_exhausted", "", nil, labels),
		PersistError:          prometheus.NewDesc("error_persist", "", nil, labels),
		ProvenanceError:       prometheus.NewDesc("error_provenance", "", nil, labels),
		VerificationError:     prometheus.NewDesc("error_verification", "", nil, labels),
		DbStoreError:          prometheus.NewDesc("error_db_store", "", nil, labels),
		NetworkError:          prometheus.NewDesc("error_network", "", nil, labels),
		HttpStatusError:       prometheus.NewDesc("error_http_status", "", nil, labels),
		RateLimitError:        prometheus.NewDesc("error_rate_limit", "", nil, labels),
		PublishError:          prometheus.NewDesc("error_publish", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.ContractsArchived
	ch <- self.ContractsSkipped
	ch <- self.ContractsFailed
	ch <- self.SourceFilesSaved
	ch <- self.MetadataFromFallback
	ch <- self.BytecodeMatches
	ch <- self.BytecodeMismatches
	ch <- self.RequestsMade
	ch <- self.Retries
	ch <- self.CacheHits
	ch <- self.CacheMisses
	ch <- self.CacheRevalidations
	ch <- self.BytesDownloaded
	ch <- self.MessagesPublished

	// Errors
	ch <- self.PrimaryFetchError
	ch <- self.FallbackFetchError
	ch <- self.SourcesExhaustedError
	ch <- self.PersistError
	ch <- self.ProvenanceError
	ch <- self.VerificationError
	ch <- self.DbStoreError
	ch <- self.NetworkError
	ch <- self.HttpStatusError
	ch <- self.RateLimitError
	ch <- self.PublishError
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(self.ContractsArchived, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.ContractsArchived.Load()))
	ch <- prometheus.MustNewConstMetric(self.ContractsSkipped, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.ContractsSkipped.Load()))
	ch <- prometheus.MustNewConstMetric(self.ContractsFailed, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.ContractsFailed.Load()))
	ch <- prometheus.MustNewConstMetric(self.SourceFilesSaved, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.SourceFilesSaved.Load()))
	ch <- prometheus.MustNewConstMetric(self.MetadataFromFallback, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.MetadataFromFallback.Load()))
	ch <- prometheus.MustNewConstMetric(self.BytecodeMatches, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.BytecodeMatches.Load()))
	ch <- prometheus.MustNewConstMetric(self.BytecodeMismatches, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.State.BytecodeMismatches.Load()))
	ch <- prometheus.MustNewConstMetric(self.RequestsMade, prometheus.CounterValue, float64(self.monitor.Report.Transport.State.RequestsMade.Load()))
	ch <- prometheus.MustNewConstMetric(self.Retries, prometheus.CounterValue, float64(self.monitor.Report.Transport.State.Retries.Load()))
	ch <- prometheus.MustNewConstMetric(self.CacheHits, prometheus.CounterValue, float64(self.monitor.Report.Transport.State.CacheHits.Load()))
	ch <- prometheus.MustNewConstMetric(self.CacheMisses, prometheus.CounterValue, float64(self.monitor.Report.Transport.State.CacheMisses.Load()))
	ch <- prometheus.MustNewConstMetric(self.CacheRevalidations, prometheus.CounterValue, float64(self.monitor.Report.Transport.State.CacheRevalidations.Load()))
	ch <- prometheus.MustNewConstMetric(self.BytesDownloaded, prometheus.CounterValue, float64(self.monitor.Report.Transport.State.BytesDownloaded.Load()))
	ch <- prometheus.MustNewConstMetric(self.MessagesPublished, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.State.MessagesPublished.Load()))

	ch <- prometheus.MustNewConstMetric(self.PrimaryFetchError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.PrimaryFetch.Load()))
	ch <- prometheus.MustNewConstMetric(self.FallbackFetchError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.FallbackFetch.Load()))
	ch <- prometheus.MustNewConstMetric(self.SourcesExhaustedError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.SourcesExhausted.Load()))
	ch <- prometheus.MustNewConstMetric(self.PersistError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.Persist.Load()))
	ch <- prometheus.MustNewConstMetric(self.ProvenanceError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.Provenance.Load()))
	ch <- prometheus.MustNewConstMetric(self.VerificationError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.Verification.Load()))
	ch <- prometheus.MustNewConstMetric(self.DbStoreError, prometheus.CounterValue, float64(self.monitor.Report.Fetcher.Errors.DbStore.Load()))
	ch <- prometheus.MustNewConstMetric(self.NetworkError, prometheus.CounterValue, float64(self.monitor.Report.Transport.Errors.Network.Load()))
	ch <- prometheus.MustNewConstMetric(self.HttpStatusError, prometheus.CounterValue, float64(self.monitor.Report.Transport.Errors.HttpStatus.Load()))
	ch <- prometheus.MustNewConstMetric(self.RateLimitError, prometheus.CounterValue, float64(self.monitor.Report.Transport.Errors.RateLimit.Load()))
	ch <- prometheus.MustNewConstMetric(self.PublishError, prometheus.CounterValue, float64(self.monitor.Report.RedisPublisher.Errors.Publish.Load()))
}
