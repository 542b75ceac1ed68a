package monitor_auditor

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// State
	ContractsAudited *prometheus.Desc
	ContractsPassed  *prometheus.Desc
	FilesVerified    *prometheus.Desc

	// Errors
	ChecksumMismatchError *prometheus.Desc
	MissingFileError      *prometheus.Desc
	ManifestReadError     *prometheus.Desc
	BytecodeMismatchError *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "auditor",
	}

	return &Collector{
		ContractsAudited: prometheus.NewDesc("contracts_audited", "", nil, labels),
		ContractsPassed:  prometheus.NewDesc("contracts_passed", "", nil, labels),
		FilesVerified:    prometheus.NewDesc("files_verified", "", nil, labels),

		ChecksumMismatchError: prometheus.NewDesc("error_checksum_mismatch", "", nil, labels),
		MissingFileError:      prometheus.NewDesc("error_missing_file", "", nil, labels),
		ManifestReadError:     prometheus.NewDesc("error_manifest_read", "", nil, labels),
		BytecodeMismatchError: prometheus.NewDesc("error_bytecode_mismatch", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.ContractsAudited
	ch <- self.ContractsPassed
	ch <- self.FilesVerified

	// Errors
	ch <- self.ChecksumMismatchError
	ch <- self.MissingFileError
	ch <- self.ManifestReadError
	ch <- self.BytecodeMismatchError
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(self.ContractsAudited, prometheus.CounterValue, float64(self.monitor.Report.Auditor.State.ContractsAudited.Load()))
	ch <- prometheus.MustNewConstMetric(self.ContractsPassed, prometheus.CounterValue, float64(self.monitor.Report.Auditor.State.ContractsPassed.Load()))
	ch <- prometheus.MustNewConstMetric(self.FilesVerified, prometheus.CounterValue, float64(self.monitor.Report.Auditor.State.FilesVerified.Load()))

	ch <- prometheus.MustNewConstMetric(self.ChecksumMismatchError, prometheus.CounterValue, float64(self.monitor.Report.Auditor.Errors.ChecksumMismatches.Load()))
	ch <- prometheus.MustNewConstMetric(self.MissingFileError, prometheus.CounterValue, float64(self.monitor.Report.Auditor.Errors.MissingFiles.Load()))
	ch <- prometheus.MustNewConstMetric(self.ManifestReadError, prometheus.CounterValue, float64(self.monitor.Report.Auditor.Errors.ManifestRead.Load()))
	ch <- prometheus.MustNewConstMetric(self.BytecodeMismatchError, prometheus.CounterValue, float64(self.monitor.Report.Auditor.Errors.BytecodeMismatches.Load()))
}
