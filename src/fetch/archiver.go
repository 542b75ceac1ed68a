package fetch

import (
	"errors"
	"fmt"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/eth"
	"github.com/evmarchive/archiver/src/utils/explorer"
	"github.com/evmarchive/archiver/src/utils/integrity"
	monitor_fetcher "github.com/evmarchive/archiver/src/utils/monitoring/fetcher"
	"github.com/evmarchive/archiver/src/utils/provenance"
	"github.com/evmarchive/archiver/src/utils/sourcify"
	"github.com/evmarchive/archiver/src/utils/task"

	"github.com/rs/xid"
)

// Archiver drives one contract at a time through the whole pipeline:
// staleness check, primary fetch, explorer fallback, persistence,
// verification and finally the provenance update. Contracts never
// interleave, so a provenance read-then-write is race free. Source file
// downloads inside one contract still fan out through the primary
// client's worker pool.
type Archiver struct {
	*task.Task

	config  *config.Config
	monitor *monitor_fetcher.Monitor

	primary  *sourcify.Client
	fallback *explorer.Client
	writer   *Writer
	tracker  *provenance.Tracker
	verifier *integrity.Verifier

	runId     string
	startedAt time.Time

	requested int
	archived  int
	skipped   int
	failed    int
	runErr    error

	input   chan ContractRef
	outputs []chan *Result
}

func NewArchiver(config *config.Config) (self *Archiver) {
	self = new(Archiver)
	self.config = config

	self.runId = xid.New().String()
	self.startedAt = time.Now()

	self.writer = NewWriter(config)
	self.tracker = provenance.NewTracker(config)
	self.verifier = integrity.NewVerifier(config)

	self.Task = task.NewTask(config, "archiver").
		WithSubtaskFunc(self.run).
		WithOnAfterStop(func() {
			for _, out := range self.outputs {
				close(out)
			}
		})

	return
}

func (self *Archiver) WithPrimary(client *sourcify.Client) *Archiver {
	self.primary = client
	return self
}

func (self *Archiver) WithFallback(client *explorer.Client) *Archiver {
	self.fallback = client
	return self
}

func (self *Archiver) WithMonitor(monitor *monitor_fetcher.Monitor) *Archiver {
	self.monitor = monitor
	return self
}

func (self *Archiver) WithInputChannel(input chan ContractRef) *Archiver {
	self.input = input
	return self
}

// NewOutputChannel registers a channel that receives every terminal
// result. All registered channels are closed once the archiver is done, so
// receivers can range over them.
func (self *Archiver) NewOutputChannel() (out chan *Result) {
	out = make(chan *Result)
	self.outputs = append(self.outputs, out)
	return
}

func (self *Archiver) RunId() string {
	return self.runId
}

// Final error of the run, nil unless strict mode aborted or the failure
// rate tripped the circuit breaker. Valid once the archiver finished.
func (self *Archiver) RunError() error {
	return self.runErr
}

func (self *Archiver) Summary() Summary {
	return Summary{
		RunId:     self.runId,
		StartedAt: self.startedAt,
		Requested: self.requested,
		Archived:  self.archived,
		Skipped:   self.skipped,
		Failed:    self.failed,
	}
}

func (self *Archiver) run() (err error) {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case ref, ok := <-self.input:
			if !ok {
				self.summarize()
				self.runErr = self.checkFailureRate()
				return self.runErr
			}

			result := self.archive(ref)
			self.account(result)
			self.forward(result)

			if result.Status == StatusFailed && self.config.Fetcher.Strict {
				self.summarize()
				self.runErr = fmt.Errorf("aborting, strict mode and contract %s/%s failed: %w",
					ref.ChainName, ref.Address, result.Err)
				return self.runErr
			}
		}
	}
}

// State machine for one contract. Always returns a terminal result, the
// error inside is already attributed to the contract.
func (self *Archiver) archive(ref ContractRef) (result *Result) {
	result = &Result{Ref: ref, Status: StatusPending}

	log := self.Log.WithField("chain", ref.ChainName).WithField("address", ref.Address)

	chain, err := self.config.GetChainByName(ref.ChainName)
	if err != nil {
		return self.fail(result, err)
	}
	result.Chain = chain

	address, err := eth.ChecksumAddress(ref.Address)
	if err != nil {
		return self.fail(result, err)
	}

	result.Status = StatusCheckingStale
	staleness, err := self.tracker.CheckStaleness(ref.ChainName, address, self.config.Fetcher.Force)
	if err != nil {
		self.monitor.Report.Fetcher.Errors.Provenance.Inc()
		return self.fail(result, err)
	}
	if staleness.ShouldSkip {
		log.Debug("Provenance record is fresh, skipping")
		result.Status = StatusSkipped
		return
	}

	record, err := self.fetch(result, chain, address)
	if err != nil {
		return self.fail(result, err)
	}
	result.Record = record

	if self.config.Fetcher.DryRun {
		log.WithField("match", record.MatchQuality).
			WithField("sources", len(record.Sources)).
			Info("Dry run, would archive contract")
		result.Status = StatusArchived
		return
	}

	result.Status = StatusPersisting
	numSources, err := self.writer.SaveRecord(ref.ChainName, record)
	if err != nil {
		self.monitor.Report.Fetcher.Errors.Persist.Inc()
		return self.fail(result, err)
	}
	self.monitor.Report.Fetcher.State.SourceFilesSaved.Add(uint64(numSources))

	if self.config.Integrity.VerifyBytecode {
		result.Status = StatusVerifying
		err = self.verify(result, chain, address, record)
		if err != nil {
			return self.fail(result, err)
		}
	}

	// Provenance goes last, a record is only fresh when everything else
	// is already on disk
	result.Provenance, err = self.tracker.RecordSuccess(ref.ChainName, address, record.SourceTag(), self.runId)
	if err != nil {
		self.monitor.Report.Fetcher.Errors.Provenance.Inc()
		return self.fail(result, err)
	}

	log.WithField("match", record.MatchQuality).
		WithField("sources", len(record.Sources)).
		Info("Contract archived")
	result.Status = StatusArchived
	return
}

// Primary source first, explorer fallback only when the primary is
// exhausted. Any other primary error is final for this contract.
func (self *Archiver) fetch(result *Result, chain *config.Chain, address string) (record *SourceRecord, err error) {
	result.Status = StatusFetchingPrimary
	lookup, err := self.primary.FetchMetadata(self.Ctx, chain.ChainId, address)
	if err == nil {
		files := self.primary.FetchAllSources(self.Ctx, lookup)
		return &SourceRecord{
			ChainId:      chain.ChainId,
			Address:      address,
			Metadata:     lookup.Metadata,
			RawMetadata:  lookup.Raw,
			Abi:          lookup.Metadata.Output.Abi,
			Sources:      files,
			MatchQuality: lookup.MatchQuality,
			OriginURL:    lookup.OriginURL,
			FetchedAt:    lookup.FetchedAt,
		}, nil
	}

	if !errors.Is(err, sourcify.ErrExhaustedSources) {
		self.monitor.Report.Fetcher.Errors.PrimaryFetch.Inc()
		return nil, err
	}

	self.monitor.Report.Fetcher.Errors.SourcesExhausted.Inc()
	if !self.config.Explorer.Enabled || chain.ExplorerAPIURL == "" {
		return nil, err
	}

	result.Status = StatusFetchingFallback
	normalized, fallbackErr := self.fallback.FetchContractSource(self.Ctx, chain, address)
	if fallbackErr != nil {
		self.monitor.Report.Fetcher.Errors.FallbackFetch.Inc()
		return nil, fmt.Errorf("%w: primary: %w, explorer: %w", ErrAllSourcesFailed, err, fallbackErr)
	}

	self.monitor.Report.Fetcher.State.MetadataFromFallback.Inc()
	return &SourceRecord{
		ChainId:      chain.ChainId,
		Address:      address,
		Metadata:     normalized.Metadata,
		RawMetadata:  normalized.Raw,
		Abi:          normalized.Abi,
		Sources:      normalized.Sources,
		MatchQuality: sourcify.MatchExplorer,
		OriginURL:    chain.ExplorerAPIURL,
		FetchedAt:    time.Now(),
	}, nil
}

// Bytecode verification is best effort. A hash mismatch lands in the
// verification file and the counters but doesn't fail the contract, only
// not being able to persist the outcome does.
func (self *Archiver) verify(result *Result, chain *config.Chain, address string, record *SourceRecord) (err error) {
	verification := self.verifier.Verify(self.Ctx, chain, address, record.Metadata, string(record.MatchQuality))
	result.Verification = verification

	if verification.Match {
		self.monitor.Report.Fetcher.State.BytecodeMatches.Inc()
	} else if verification.OnChainDeployedHash != "" && verification.MetadataDeployedHash != "" {
		self.monitor.Report.Fetcher.State.BytecodeMismatches.Inc()
	}
	if len(verification.Errors) > 0 {
		self.monitor.Report.Fetcher.Errors.Verification.Inc()
	}

	err = self.writer.SaveVerification(result.Ref.ChainName, address, verification)
	if err != nil {
		self.monitor.Report.Fetcher.Errors.Persist.Inc()
	}
	return
}

func (self *Archiver) fail(result *Result, err error) *Result {
	self.Log.WithError(err).
		WithField("chain", result.Ref.ChainName).
		WithField("address", result.Ref.Address).
		WithField("stage", result.Status).
		Error("Failed to archive contract")
	result.Status = StatusFailed
	result.Err = err
	return result
}

func (self *Archiver) account(result *Result) {
	self.requested += 1
	switch result.Status {
	case StatusArchived:
		self.archived += 1
		self.monitor.Report.Fetcher.State.ContractsArchived.Inc()
		self.monitor.Report.Fetcher.State.LastContractArchivedTimestamp.Store(time.Now().Unix())
	case StatusSkipped:
		self.skipped += 1
		self.monitor.Report.Fetcher.State.ContractsSkipped.Inc()
	case StatusFailed:
		self.failed += 1
		self.monitor.Report.Fetcher.State.ContractsFailed.Inc()
	}
}

func (self *Archiver) forward(result *Result) {
	for _, out := range self.outputs {
		select {
		case <-self.Ctx.Done():
			return
		case out <- result:
		}
	}
}

func (self *Archiver) summarize() {
	self.Log.WithField("run_id", self.runId).
		WithField("requested", self.requested).
		WithField("archived", self.archived).
		WithField("skipped", self.skipped).
		WithField("failed", self.failed).
		WithField("took", time.Since(self.startedAt).Round(time.Millisecond).String()).
		Info("Run finished")
}

func (self *Archiver) checkFailureRate() (err error) {
	if self.failed == 0 || self.requested == 0 {
		return nil
	}
	rate := float64(self.failed) / float64(self.requested)
	if rate > self.config.Fetcher.MaxFailureRate {
		return fmt.Errorf("%d of %d contracts failed, rate %.2f is above the limit %.2f",
			self.failed, self.requested, rate, self.config.Fetcher.MaxFailureRate)
	}
	return nil
}
