package fetch

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/integrity"
	"github.com/evmarchive/archiver/src/utils/sourcify"

	"github.com/stretchr/testify/require"
)

func TestWriterSavesRecordWithManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Archive.Dir = t.TempDir()

	record := &SourceRecord{
		ChainId:     1,
		Address:     wethAddress,
		RawMetadata: []byte(`{"language": "Solidity"}`),
		Abi:         json.RawMessage(`[{"type": "function", "name": "deposit"}]`),
		Sources: map[string][]byte{
			"WETH9.sol":           []byte("contract WETH9 {}\n"),
			"lib/SafeMath.sol":    []byte("library SafeMath {}\n"),
			"../escape-above.sol": []byte("nope"),
		},
		MatchQuality: sourcify.MatchExact,
	}

	writer := NewWriter(cfg)
	numSources, err := writer.SaveRecord("testnet", record)
	require.Nil(t, err)
	// The traversal path was dropped
	require.Equal(t, 2, numSources)

	layout := archive.NewLayout(cfg.Archive.Dir)
	dir := layout.ContractDir("testnet", wethAddress)

	_, err = os.Stat(layout.ContractFile("testnet", wethAddress, "sources/lib/SafeMath.sol"))
	require.Nil(t, err)
	_, err = os.Stat(layout.ContractFile("testnet", wethAddress, "escape-above.sol"))
	require.True(t, os.IsNotExist(err))

	// The manifest covers exactly what was written
	manifest := new(integrity.ChecksumManifest)
	require.Nil(t, archive.LoadJSON(layout.ContractFile("testnet", wethAddress, archive.ChecksumsFile), manifest))
	require.Len(t, manifest.Files, 4)

	report, err := integrity.VerifyChecksums(dir, manifest)
	require.Nil(t, err)
	require.True(t, report.IsValid())
}

func TestWriterOmitsEmptyAbi(t *testing.T) {
	cfg := config.Default()
	cfg.Archive.Dir = t.TempDir()

	record := &SourceRecord{
		ChainId:      1,
		Address:      wethAddress,
		RawMetadata:  []byte(`{}`),
		MatchQuality: sourcify.MatchApproximate,
	}

	writer := NewWriter(cfg)
	numSources, err := writer.SaveRecord("testnet", record)
	require.Nil(t, err)
	require.Equal(t, 0, numSources)

	layout := archive.NewLayout(cfg.Archive.Dir)
	_, err = os.Stat(layout.ContractFile("testnet", wethAddress, archive.AbiFile))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(layout.ContractFile("testnet", wethAddress, archive.MetadataFile))
	require.Nil(t, err)
}
