package model

import "time"

const (
	TableArchiveRun = "archive_runs"
)

// Summary row written once per fetch run
type ArchiveRun struct {
	ID int

	// xid generated at run start, referenced by provenance records
	RunId string

	StartedAt  time.Time
	FinishedAt time.Time

	ContractsRequested int
	ContractsArchived  int
	ContractsSkipped   int
	ContractsFailed    int
}
