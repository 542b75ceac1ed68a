package report

import (
	"go.uber.org/atomic"
)

type AuditorErrors struct {
	ChecksumMismatches atomic.Uint64 `json:"checksum_mismatches"`
	MissingFiles       atomic.Uint64 `json:"missing_files"`
	ManifestRead       atomic.Uint64 `json:"manifest_read"`
	BytecodeMismatches atomic.Uint64 `json:"bytecode_mismatches"`
}

type AuditorState struct {
	ContractsAudited atomic.Uint64 `json:"contracts_audited"`
	ContractsPassed  atomic.Uint64 `json:"contracts_passed"`
	FilesVerified    atomic.Uint64 `json:"files_verified"`

	LastAuditTimestamp               atomic.Int64   `json:"last_audit_timestamp"`
	AverageContractsAuditedPerMinute atomic.Float64 `json:"average_contracts_audited_per_minute"`
}

type AuditorReport struct {
	State  AuditorState  `json:"state"`
	Errors AuditorErrors `json:"errors"`
}
