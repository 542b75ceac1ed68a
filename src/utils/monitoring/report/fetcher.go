package report

import (
	"go.uber.org/atomic"
)

type FetcherErrors struct {
	PrimaryFetch     atomic.Uint64 `json:"primary_fetch"`
	FallbackFetch    atomic.Uint64 `json:"fallback_fetch"`
	SourcesExhausted atomic.Uint64 `json:"sources_exhausted"`
	Persist          atomic.Uint64 `json:"persist"`
	Provenance       atomic.Uint64 `json:"provenance"`
	Verification     atomic.Uint64 `json:"verification"`
	DbStore          atomic.Uint64 `json:"db_store"`
}

type FetcherState struct {
	ContractsArchived    atomic.Uint64 `json:"contracts_archived"`
	ContractsSkipped     atomic.Uint64 `json:"contracts_skipped"`
	ContractsFailed      atomic.Uint64 `json:"contracts_failed"`
	SourceFilesSaved     atomic.Uint64 `json:"source_files_saved"`
	MetadataFromFallback atomic.Uint64 `json:"metadata_from_fallback"`
	BytecodeMatches      atomic.Uint64 `json:"bytecode_matches"`
	BytecodeMismatches   atomic.Uint64 `json:"bytecode_mismatches"`

	LastContractArchivedTimestamp     atomic.Int64   `json:"last_contract_archived_timestamp"`
	LastSweepTimestamp                atomic.Int64   `json:"last_sweep_timestamp"`
	AverageContractsArchivedPerMinute atomic.Float64 `json:"average_contracts_archived_per_minute"`
}

type FetcherReport struct {
	State  FetcherState  `json:"state"`
	Errors FetcherErrors `json:"errors"`
}
