package fetch

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/integrity"
	"github.com/evmarchive/archiver/src/utils/provenance"
	"github.com/evmarchive/archiver/src/utils/sourcify"
)

// Raised when the fallback source failed after the primary was exhausted
var ErrAllSourcesFailed = errors.New("all sources failed")

// One contract to archive, as it comes from the CLI or the sweep
type ContractRef struct {
	ChainName string
	Address   string
}

// Stage a contract is in, used in logs and failure reports
type Status string

const (
	StatusPending          Status = "pending"
	StatusCheckingStale    Status = "checking_staleness"
	StatusSkipped          Status = "skipped"
	StatusFetchingPrimary  Status = "fetching_primary"
	StatusFetchingFallback Status = "fetching_fallback"
	StatusPersisting       Status = "persisting"
	StatusVerifying        Status = "verifying"
	StatusArchived         Status = "archived"
	StatusFailed           Status = "failed"
)

// Everything a fetch produced for one contract, independent of which
// source served it. The explorer fallback is normalized into this same
// shape, so persistence and verification don't care about the origin.
type SourceRecord struct {
	ChainId int64

	// EIP-55 checksummed
	Address string

	Metadata *sourcify.Metadata

	// Exact metadata payload as served, persisted verbatim
	RawMetadata []byte

	Abi json.RawMessage

	// Source files keyed by their cleaned relative path
	Sources map[string][]byte

	MatchQuality sourcify.MatchQuality

	// URL that served the metadata
	OriginURL string

	FetchedAt time.Time
}

// Provenance tag of the repository kind that served this record
func (self *SourceRecord) SourceTag() string {
	if self.MatchQuality == sourcify.MatchExplorer {
		return provenance.SourceExplorer
	}
	return provenance.SourcePrimary
}

// Terminal outcome for one contract, forwarded to the store and the
// notification mapper
type Result struct {
	Chain  *config.Chain
	Ref    ContractRef
	Status Status

	// Set when Status is archived
	Record       *SourceRecord
	Verification *integrity.VerificationResult
	Provenance   *provenance.Record

	// Set when Status is failed
	Err error
}

// Totals for one run, written to the archive_runs table when the
// database index is enabled
type Summary struct {
	RunId     string
	StartedAt time.Time

	Requested int
	Archived  int
	Skipped   int
	Failed    int
}
