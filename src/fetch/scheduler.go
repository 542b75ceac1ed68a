package fetch

import (
	"strings"
	"time"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/config"
	monitor_fetcher "github.com/evmarchive/archiver/src/utils/monitoring/fetcher"
	"github.com/evmarchive/archiver/src/utils/provenance"
	"github.com/evmarchive/archiver/src/utils/task"
	"github.com/evmarchive/archiver/src/utils/transport"
)

// Scheduler queues contracts for the archiver, strictly in input order.
// With a fixed input list it finishes once everything is queued and the
// pipeline drains on its own. With a periodic sweep it keeps re-enqueuing
// the whole archive until stopped.
type Scheduler struct {
	*task.Task

	config  *config.Config
	layout  *archive.Layout
	tracker *provenance.Tracker
	monitor *monitor_fetcher.Monitor
	cache   transport.Store

	refs     []ContractRef
	sweeping bool

	Output chan ContractRef
}

func NewScheduler(config *config.Config, refs []ContractRef) (self *Scheduler) {
	self = new(Scheduler)
	self.config = config
	self.layout = archive.NewLayout(config.Archive.Dir)
	self.tracker = provenance.NewTracker(config)

	self.Output = make(chan ContractRef)

	self.Task = task.NewTask(config, "scheduler").
		WithSubtaskFunc(self.feed).
		WithOnAfterStop(func() {
			close(self.Output)
		})

	self.refs = self.dedup(refs)

	return
}

func (self *Scheduler) WithMonitor(monitor *monitor_fetcher.Monitor) *Scheduler {
	self.monitor = monitor
	return self
}

// WithPeriodicSweep re-enqueues every non-orphaned archived contract each
// interval and prunes expired transport cache entries. Contracts with fresh
// provenance get skipped downstream, so sweeping is cheap when nothing is
// stale.
func (self *Scheduler) WithPeriodicSweep(cache transport.Store) *Scheduler {
	self.sweeping = true
	self.cache = cache
	self.Task = self.Task.WithPeriodicSubtaskFunc(self.config.Fetcher.SweepInterval, self.sweep)
	return self
}

// Keeps the first occurrence of each contract, addresses compared
// case-insensitively
func (self *Scheduler) dedup(refs []ContractRef) (out []ContractRef) {
	seen := make(map[string]struct{}, len(refs))
	out = make([]ContractRef, 0, len(refs))
	for _, ref := range refs {
		key := ref.ChainName + "/" + strings.ToLower(ref.Address)
		if _, ok := seen[key]; ok {
			self.Log.WithField("chain", ref.ChainName).
				WithField("address", ref.Address).
				Debug("Duplicate contract in input, keeping first occurrence")
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	return
}

func (self *Scheduler) enqueue(refs []ContractRef) (err error) {
	for _, ref := range refs {
		select {
		case <-self.StopChannel:
			return nil
		case self.Output <- ref:
		}
	}
	return nil
}

func (self *Scheduler) feed() (err error) {
	self.Log.WithField("count", len(self.refs)).Info("Queueing contracts")
	return self.enqueue(self.refs)
}

// One sweep pass over the whole archive
func (self *Scheduler) sweep() (err error) {
	if sweeper, ok := self.cache.(transport.Sweeper); ok {
		removed, err := sweeper.Sweep(self.config.Transport.CacheRetention)
		if err != nil {
			self.Log.WithError(err).Warn("Failed to sweep the transport cache")
		} else if removed > 0 {
			self.Log.WithField("removed", removed).Debug("Swept expired cache entries")
		}
	}

	entries, err := self.layout.ListContracts()
	if err != nil {
		return err
	}

	refs := make([]ContractRef, 0, len(entries))
	for _, entry := range entries {
		record, err := self.tracker.Load(entry.ChainName, entry.Address)
		if err != nil {
			// The archiver heals broken provenance on re-fetch
			self.Log.WithError(err).
				WithField("chain", entry.ChainName).
				WithField("address", entry.Address).
				Warn("Unreadable provenance record, re-enqueuing contract")
		}
		if record != nil && record.Orphaned {
			continue
		}
		refs = append(refs, ContractRef{ChainName: entry.ChainName, Address: entry.Address})
	}

	self.Log.WithField("count", len(refs)).Info("Sweep pass, re-enqueuing archived contracts")
	err = self.enqueue(self.dedup(refs))
	if err != nil {
		return
	}

	if self.monitor != nil {
		self.monitor.Report.Fetcher.State.LastSweepTimestamp.Store(time.Now().Unix())
	}
	return
}
