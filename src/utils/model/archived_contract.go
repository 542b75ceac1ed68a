package model

import (
	"time"

	"github.com/jackc/pgtype"
	"github.com/lib/pq"
)

const (
	TableArchivedContract = "archived_contracts"
)

// One row per archived contract. The filesystem archive is the source of
// truth, this table is a queryable index over it, upserted on every
// successful fetch.
type ArchivedContract struct {
	ID int

	ChainName string
	ChainId   int64

	// EIP-55 checksummed
	Address string

	// exact, approximate or explorer
	MatchQuality pgtype.Varchar

	// Metadata URL that served the contract
	Origin pgtype.Varchar

	Abi      pgtype.JSONB
	Metadata pgtype.JSONB

	SourcesUsed pq.StringArray `gorm:"type:text[]"`

	FetchRunId string
	ArchivedAt time.Time
}
