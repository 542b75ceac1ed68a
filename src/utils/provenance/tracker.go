package provenance

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/build_info"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/logger"
	"github.com/evmarchive/archiver/src/utils/transport"

	"github.com/sirupsen/logrus"
)

// Source tags recorded in SourcesUsed
const (
	SourcePrimary  = "primary"
	SourceExplorer = "explorer"
)

// Outcome of the staleness check that gates every fetch
type Staleness struct {
	// Is there a provenance record for this contract
	Exists bool

	// The record found, nil when Exists is false
	Prior *Record

	// Is the record older than the staleness threshold
	IsStale bool

	// Skip iff the record exists, is fresh and no refresh was forced
	ShouldSkip bool
}

// Tracker decides whether a contract needs re-fetching and keeps the
// per-contract audit trail up to date
type Tracker struct {
	config *config.Config
	log    *logrus.Entry
	layout *archive.Layout
}

func NewTracker(config *config.Config) (self *Tracker) {
	self = new(Tracker)
	self.config = config
	self.log = logger.NewSublogger("provenance")
	self.layout = archive.NewLayout(config.Archive.Dir)
	return
}

func (self *Tracker) path(chainName, address string) string {
	return self.layout.ContractFile(chainName, address, archive.ProvenanceFile)
}

// Load reads the provenance record, nil when the contract was never archived
func (self *Tracker) Load(chainName, address string) (out *Record, err error) {
	data, err := os.ReadFile(self.path(chainName, address))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return
	}

	out = new(Record)
	err = json.Unmarshal(data, out)
	if err != nil {
		return nil, &transport.SchemaValidationError{What: "provenance record", Err: err}
	}
	return
}

func (self *Tracker) CheckStaleness(chainName, address string, force bool) (out *Staleness, err error) {
	out = new(Staleness)

	prior, err := self.Load(chainName, address)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		// Never archived, by definition stale
		out.IsStale = true
		return
	}

	out.Exists = true
	out.Prior = prior
	out.IsStale = prior.Age() > self.config.Provenance.StalenessThreshold
	out.ShouldSkip = !out.IsStale && !force

	self.log.WithField("chain", chainName).
		WithField("address", address).
		WithField("age", prior.Age().Round(time.Second)).
		WithField("skip", out.ShouldSkip).
		Trace("Checked staleness")
	return
}

// RecordSuccess creates the record on first success and updates it on every
// later one. FirstSeenAt is set once and preserved, SourcesUsed is a union
// across runs. Must be called only after every archive file is on disk.
func (self *Tracker) RecordSuccess(chainName, address, source, runId string) (out *Record, err error) {
	now := time.Now().UTC()

	out, err = self.Load(chainName, address)
	if err != nil {
		// The record is being rewritten anyway, a fetch success heals it
		self.log.WithError(err).
			WithField("chain", chainName).
			WithField("address", address).
			Warn("Replacing unreadable provenance record")
		out = nil
		err = nil
	}

	if out == nil {
		out = &Record{FirstSeenAt: now}
	}
	out.AddSource(source)
	out.LastUpdatedAt = now
	out.FetchRunId = runId
	out.Tools = Tools{Name: "archiver", Version: build_info.Version}
	out.CommitHash = build_info.CommitHash
	out.Operator = self.config.Operator

	// A successful fetch revives an orphaned entry
	out.Orphaned = false

	if out.FirstSeenAt.After(out.LastUpdatedAt) {
		out.FirstSeenAt = out.LastUpdatedAt
	}

	err = archive.SaveJSON(self.path(chainName, address), out)
	if err != nil {
		return nil, err
	}
	return
}

// MarkOrphaned flags the contract as gone from the current input set.
// History is never deleted, the sweep just stops refreshing the entry.
func (self *Tracker) MarkOrphaned(chainName, address string) (err error) {
	record, err := self.Load(chainName, address)
	if err != nil {
		return
	}
	if record == nil {
		return fmt.Errorf("no provenance record for %s/%s", chainName, address)
	}
	if record.Orphaned {
		return
	}

	record.Orphaned = true

	// LastUpdatedAt untouched, orphaning is not a fetch
	return archive.SaveJSON(self.path(chainName, address), record)
}
