package audit

import (
	"fmt"
	"time"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/integrity"
	monitor_auditor "github.com/evmarchive/archiver/src/utils/monitoring/auditor"
	"github.com/evmarchive/archiver/src/utils/sourcify"
	"github.com/evmarchive/archiver/src/utils/task"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Auditor re-checks every archived contract against its checksum manifest
// and optionally against the chain. It only reads the archive, repairing a
// broken contract means fetching it again.
type Auditor struct {
	*task.Task

	config   *config.Config
	monitor  *monitor_auditor.Monitor
	layout   *archive.Layout
	verifier *integrity.Verifier

	audited atomic.Uint64
	invalid atomic.Uint64
	runErr  error
}

func NewAuditor(config *config.Config) (self *Auditor) {
	self = new(Auditor)
	self.config = config
	self.layout = archive.NewLayout(config.Archive.Dir)
	self.verifier = integrity.NewVerifier(config)

	self.Task = task.NewTask(config, "auditor").
		WithSubtaskFunc(self.run).
		WithWorkerPool(config.Auditor.WorkerPoolSize, config.Auditor.WorkerQueueSize)

	return
}

func (self *Auditor) WithMonitor(monitor *monitor_auditor.Monitor) *Auditor {
	self.monitor = monitor
	return self
}

// Final error of the audit, nil when every contract passed. Valid once the
// auditor finished.
func (self *Auditor) RunError() error {
	return self.runErr
}

func (self *Auditor) run() (err error) {
	entries, err := self.layout.ListContracts()
	if err != nil {
		self.runErr = err
		return
	}

	self.Log.WithField("count", len(entries)).Info("Auditing archived contracts")

	for _, entry := range entries {
		if self.IsStopping.Load() {
			break
		}
		entry := entry
		self.SubmitToWorker(func() {
			self.audit(entry)
		})
	}

	// Wait for in-flight audits, the pool won't be needed again
	self.Workers.StopWait()

	self.Log.WithField("audited", self.audited.Load()).
		WithField("invalid", self.invalid.Load()).
		Info("Audit finished")

	if invalid := self.invalid.Load(); invalid > 0 {
		self.runErr = fmt.Errorf("%d of %d contracts failed the audit", invalid, self.audited.Load())
		return self.runErr
	}
	return nil
}

func (self *Auditor) audit(entry archive.Entry) {
	log := self.Log.WithField("chain", entry.ChainName).WithField("address", entry.Address)

	self.audited.Inc()
	self.monitor.Report.Auditor.State.ContractsAudited.Inc()
	self.monitor.Report.Auditor.State.LastAuditTimestamp.Store(time.Now().Unix())

	ok := self.checkManifest(entry, log)
	if self.config.Auditor.VerifyBytecode {
		ok = self.checkBytecode(entry, log) && ok
	}

	if !ok {
		self.invalid.Inc()
		return
	}
	self.monitor.Report.Auditor.State.ContractsPassed.Inc()
}

func (self *Auditor) checkManifest(entry archive.Entry, log *logrus.Entry) (ok bool) {
	dir := self.layout.ContractDir(entry.ChainName, entry.Address)

	manifest := new(integrity.ChecksumManifest)
	err := archive.LoadJSON(self.layout.ContractFile(entry.ChainName, entry.Address, archive.ChecksumsFile), manifest)
	if err != nil {
		self.monitor.Report.Auditor.Errors.ManifestRead.Inc()
		log.WithError(err).Error("Failed to read the checksum manifest")
		return false
	}

	report, err := integrity.VerifyChecksums(dir, manifest)
	if err != nil {
		self.monitor.Report.Auditor.Errors.ManifestRead.Inc()
		log.WithError(err).Error("Failed to verify checksums")
		return false
	}

	self.monitor.Report.Auditor.State.FilesVerified.Add(uint64(len(manifest.Files)))
	self.monitor.Report.Auditor.Errors.ChecksumMismatches.Add(uint64(len(report.Mismatched)))
	self.monitor.Report.Auditor.Errors.MissingFiles.Add(uint64(len(report.Missing)))

	for _, mismatch := range report.Mismatched {
		log.WithField("path", mismatch.Path).
			WithField("expected", mismatch.Expected).
			WithField("actual", mismatch.Actual).
			Error("Checksum mismatch")
	}
	for _, path := range report.Missing {
		log.WithField("path", path).Error("File from the manifest is missing")
	}
	for _, path := range report.Extra {
		// Unknown files don't fail the audit, they're just not covered
		log.WithField("path", path).Warn("File not covered by the manifest")
	}

	return report.IsValid()
}

// Re-verifies the archived metadata against the chain. Contracts on chains
// without an RPC endpoint are left alone.
func (self *Auditor) checkBytecode(entry archive.Entry, log *logrus.Entry) (ok bool) {
	chain, err := self.config.GetChainByName(entry.ChainName)
	if err != nil || chain.RPCURL == "" {
		return true
	}

	metadata := new(sourcify.Metadata)
	err = archive.LoadJSON(self.layout.ContractFile(entry.ChainName, entry.Address, archive.MetadataFile), metadata)
	if err != nil {
		self.monitor.Report.Auditor.Errors.ManifestRead.Inc()
		log.WithError(err).Error("Failed to read archived metadata")
		return false
	}

	verification := self.verifier.Verify(self.Ctx, chain, entry.Address, metadata, "")
	if verification.OnChainDeployedHash != "" && verification.MetadataDeployedHash != "" && !verification.Match {
		self.monitor.Report.Auditor.Errors.BytecodeMismatches.Inc()
		log.WithField("on_chain", verification.OnChainDeployedHash).
			WithField("archived", verification.MetadataDeployedHash).
			Error("Archived bytecode doesn't match the chain")
		return false
	}
	return true
}
