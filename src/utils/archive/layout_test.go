package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestLayoutTestSuite(t *testing.T) {
	suite.Run(t, new(LayoutTestSuite))
}

type LayoutTestSuite struct {
	suite.Suite
}

func (s *LayoutTestSuite) TestContractDir() {
	layout := NewLayout("/archive")
	dir := layout.ContractDir("ethereum", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.Equal(s.T(), filepath.Join("/archive", "ethereum", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), dir)
}

func (s *LayoutTestSuite) TestSourcePathStaysInside() {
	layout := NewLayout("/archive")

	out, err := layout.SourcePath("ethereum", "0xabc", "contracts/WETH9.sol")
	require.Nil(s.T(), err)
	require.Equal(s.T(), filepath.Join("/archive", "ethereum", "0xabc", "sources", "contracts", "WETH9.sol"), out)

	// Traversal attempts are squashed, never escape the sources dir
	out, err = layout.SourcePath("ethereum", "0xabc", "../../../../etc/passwd")
	require.Nil(s.T(), err)
	require.Equal(s.T(), filepath.Join("/archive", "ethereum", "0xabc", "sources", "etc", "passwd"), out)

	_, err = layout.SourcePath("ethereum", "0xabc", "")
	require.NotNil(s.T(), err)
}

func (s *LayoutTestSuite) TestSaveAndLoadJSON() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	err := SaveJSON(path, &doc{Name: "WETH9", Count: 2})
	require.Nil(s.T(), err)

	var loaded doc
	err = LoadJSON(path, &loaded)
	require.Nil(s.T(), err)
	require.Equal(s.T(), "WETH9", loaded.Name)
	require.Equal(s.T(), 2, loaded.Count)
}

func (s *LayoutTestSuite) TestListContracts() {
	dir := s.T().TempDir()
	layout := NewLayout(dir)

	require.Nil(s.T(), WriteFile(filepath.Join(dir, "ethereum", "0xabc", MetadataFile), []byte("{}")))
	require.Nil(s.T(), WriteFile(filepath.Join(dir, "ethereum", "0xdef", MetadataFile), []byte("{}")))
	require.Nil(s.T(), WriteFile(filepath.Join(dir, "sepolia", "0x123", MetadataFile), []byte("{}")))

	entries, err := layout.ListContracts()
	require.Nil(s.T(), err)
	require.Len(s.T(), entries, 3)
	require.Contains(s.T(), entries, Entry{ChainName: "ethereum", Address: "0xabc"})
	require.Contains(s.T(), entries, Entry{ChainName: "sepolia", Address: "0x123"})
}

func (s *LayoutTestSuite) TestListContractsEmptyRoot() {
	layout := NewLayout(filepath.Join(s.T().TempDir(), "missing"))
	entries, err := layout.ListContracts()
	require.Nil(s.T(), err)
	require.Empty(s.T(), entries)
}
