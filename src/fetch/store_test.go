package fetch

import (
	"encoding/json"
	"testing"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/provenance"
	"github.com/evmarchive/archiver/src/utils/sourcify"

	"github.com/jackc/pgtype"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestStoreMapsArchivedResult(t *testing.T) {
	store := NewStore(config.Default())

	result := &Result{
		Ref:    ContractRef{ChainName: "testnet", Address: wethAddress},
		Status: StatusArchived,
		Record: &SourceRecord{
			ChainId:      1,
			Address:      wethAddress,
			RawMetadata:  []byte(`{"language": "Solidity"}`),
			Abi:          json.RawMessage(`[{"type": "function", "name": "deposit"}]`),
			MatchQuality: sourcify.MatchExact,
			OriginURL:    "https://repo.example/metadata.json",
		},
		Provenance: &provenance.Record{
			FetchRunId:  "run-1",
			SourcesUsed: []string{"explorer", "primary"},
		},
	}

	rows, err := store.process(result)
	require.Nil(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "testnet", row.ChainName)
	require.Equal(t, int64(1), row.ChainId)
	require.Equal(t, wethAddress, row.Address)
	require.Equal(t, "exact", row.MatchQuality.String)
	require.Equal(t, "https://repo.example/metadata.json", row.Origin.String)
	require.Equal(t, pq.StringArray{"explorer", "primary"}, row.SourcesUsed)
	require.Equal(t, "run-1", row.FetchRunId)
	require.Equal(t, pgtype.Present, row.Metadata.Status)
	require.Equal(t, pgtype.Present, row.Abi.Status)
	require.False(t, row.ArchivedAt.IsZero())
}

func TestStoreIgnoresSkippedAndFailed(t *testing.T) {
	store := NewStore(config.Default())

	for _, status := range []Status{StatusSkipped, StatusFailed} {
		rows, err := store.process(&Result{Status: status})
		require.Nil(t, err)
		require.Empty(t, rows)
	}
}

func TestStoreHandlesMissingAbi(t *testing.T) {
	store := NewStore(config.Default())

	rows, err := store.process(&Result{
		Ref:    ContractRef{ChainName: "testnet", Address: wethAddress},
		Status: StatusArchived,
		Record: &SourceRecord{
			ChainId:      1,
			Address:      wethAddress,
			RawMetadata:  []byte(`{}`),
			MatchQuality: sourcify.MatchExplorer,
		},
	})
	require.Nil(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, pgtype.Null, rows[0].Abi.Status)
	// Without a provenance record the source tag is derived from the match
	require.Equal(t, pq.StringArray{"explorer"}, rows[0].SourcesUsed)
}
