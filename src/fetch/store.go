package fetch

import (
	"context"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/model"
	monitor_fetcher "github.com/evmarchive/archiver/src/utils/monitoring/fetcher"
	"github.com/evmarchive/archiver/src/utils/task"

	"github.com/jackc/pgtype"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store keeps the database index in sync with the filesystem archive.
// - groups results into batches,
// - ensures rows aren't stuck even when a batch isn't full,
// - writes the run summary row once the pipeline is done.
// The index is best effort, a failed upsert never un-archives a contract.
type Store struct {
	*task.Processor[*Result, *model.ArchivedContract]

	DB *gorm.DB

	monitor *monitor_fetcher.Monitor
	summary func() Summary
}

func NewStore(config *config.Config) (self *Store) {
	self = new(Store)

	self.Processor = task.NewProcessor[*Result, *model.ArchivedContract](config, "store").
		WithBatchSize(config.Fetcher.StoreBatchSize).
		WithOnFlush(config.Fetcher.StoreInterval, self.flush).
		WithOnProcess(self.process).
		WithBackoff(config.Fetcher.StoreBackoffMaxElapsedTime, config.Fetcher.StoreBackoffMaxInterval)

	self.Task = self.Task.WithOnAfterStop(self.saveRun)

	return
}

func (self *Store) WithMonitor(monitor *monitor_fetcher.Monitor) *Store {
	self.monitor = monitor
	return self
}

func (self *Store) WithInputChannel(v chan *Result) *Store {
	self.Processor = self.Processor.WithInputChannel(v)
	return self
}

func (self *Store) WithDB(v *gorm.DB) *Store {
	self.DB = v
	return self
}

// WithSummary provides the run totals written to archive_runs when the
// pipeline finished
func (self *Store) WithSummary(v func() Summary) *Store {
	self.summary = v
	return self
}

func (self *Store) process(result *Result) (out []*model.ArchivedContract, err error) {
	if result.Status != StatusArchived || result.Record == nil {
		// Skipped and failed contracts don't touch the index
		return
	}

	row := &model.ArchivedContract{
		ChainName:  result.Ref.ChainName,
		ChainId:    result.Record.ChainId,
		Address:    result.Record.Address,
		ArchivedAt: time.Now(),
	}

	if result.Provenance != nil {
		row.FetchRunId = result.Provenance.FetchRunId
		row.SourcesUsed = pq.StringArray(result.Provenance.SourcesUsed)
	} else {
		row.SourcesUsed = pq.StringArray{result.Record.SourceTag()}
	}

	err = row.MatchQuality.Set(string(result.Record.MatchQuality))
	if err != nil {
		self.Log.WithError(err).Error("Failed to set match quality")
		return nil, err
	}

	err = row.Origin.Set(result.Record.OriginURL)
	if err != nil {
		self.Log.WithError(err).Error("Failed to set origin")
		return nil, err
	}

	err = row.Metadata.Set([]byte(result.Record.RawMetadata))
	if err != nil {
		self.Log.WithError(err).Error("Failed to set metadata")
		return nil, err
	}

	if len(result.Record.Abi) > 0 {
		err = row.Abi.Set([]byte(result.Record.Abi))
		if err != nil {
			self.Log.WithError(err).Error("Failed to set ABI")
			return nil, err
		}
	} else {
		row.Abi = pgtype.JSONB{Status: pgtype.Null}
	}

	out = []*model.ArchivedContract{row}
	return
}

func (self *Store) flush(rows []*model.ArchivedContract) (out []*model.ArchivedContract, err error) {
	if len(rows) == 0 {
		// Nothing buffered, the flush ticker fired on an idle pipeline
		return
	}

	self.Log.WithField("count", len(rows)).Trace("Flushing archived contracts")
	defer self.Log.Trace("Flushing archived contracts done")

	err = self.DB.WithContext(self.Ctx).
		Transaction(func(tx *gorm.DB) error {
			return tx.WithContext(self.Ctx).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "chain_name"}, {Name: "address"}},
					UpdateAll: true,
				}).
				Create(rows).
				Error
		})
	if err != nil {
		self.Log.WithError(err).Error("Failed to upsert archived contracts")
		self.monitor.Report.Fetcher.Errors.DbStore.Inc()
		return
	}

	// The index is a sink, notifications are fed from the archiver directly
	return nil, nil
}

// Runs after the processor drained, so the totals are final. The task
// context is already cancelled at this point, the run row gets its own.
func (self *Store) saveRun() {
	if self.summary == nil {
		return
	}
	summary := self.summary()

	row := &model.ArchiveRun{
		RunId:              summary.RunId,
		StartedAt:          summary.StartedAt,
		FinishedAt:         time.Now(),
		ContractsRequested: summary.Requested,
		ContractsArchived:  summary.Archived,
		ContractsSkipped:   summary.Skipped,
		ContractsFailed:    summary.Failed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	err := self.DB.WithContext(ctx).Create(row).Error
	if err != nil {
		self.Log.WithError(err).Error("Failed to save the run summary")
		self.monitor.Report.Fetcher.Errors.DbStore.Inc()
		return
	}
	self.Log.WithField("run_id", summary.RunId).Debug("Run summary saved")
}
