package audit

import (
	"os"
	"testing"
	"time"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/integrity"
	monitor_auditor "github.com/evmarchive/archiver/src/utils/monitoring/auditor"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestAuditorTestSuite(t *testing.T) {
	suite.Run(t, new(AuditorTestSuite))
}

type AuditorTestSuite struct {
	suite.Suite
	config  *config.Config
	monitor *monitor_auditor.Monitor
	layout  *archive.Layout
}

func (s *AuditorTestSuite) SetupTest() {
	s.config = config.Default()
	s.config.Archive.Dir = s.T().TempDir()
	s.monitor = monitor_auditor.NewMonitor().
		WithMaxHistorySize(30)
	s.layout = archive.NewLayout(s.config.Archive.Dir)
}

// Lays down a contract directory with a manifest that matches its content
func (s *AuditorTestSuite) writeContract(chainName, address string, files map[string]string) {
	for relPath, content := range files {
		err := archive.WriteFile(s.layout.ContractFile(chainName, address, relPath), []byte(content))
		require.Nil(s.T(), err)
	}
	manifest, err := integrity.ComputeFileChecksums(s.layout.ContractDir(chainName, address))
	require.Nil(s.T(), err)
	err = archive.SaveJSON(s.layout.ContractFile(chainName, address, archive.ChecksumsFile), manifest)
	require.Nil(s.T(), err)
}

func (s *AuditorTestSuite) runAudit() *Auditor {
	auditor := NewAuditor(s.config).
		WithMonitor(s.monitor)
	require.Nil(s.T(), auditor.Start())

	select {
	case <-auditor.CtxRunning.Done():
	case <-time.After(10 * time.Second):
		s.T().Fatal("audit did not finish in time")
	}
	return auditor
}

func (s *AuditorTestSuite) TestPassesIntactArchive() {
	s.writeContract("testnet", "0xaa", map[string]string{
		archive.MetadataFile:  `{"language": "Solidity"}`,
		"sources/Token.sol":   "contract Token {}\n",
		"sources/lib/Dep.sol": "library Dep {}\n",
	})
	s.writeContract("testnet", "0xbb", map[string]string{
		archive.MetadataFile: `{}`,
	})

	auditor := s.runAudit()

	require.Nil(s.T(), auditor.RunError())
	require.Equal(s.T(), uint64(2), s.monitor.Report.Auditor.State.ContractsAudited.Load())
	require.Equal(s.T(), uint64(2), s.monitor.Report.Auditor.State.ContractsPassed.Load())
	require.Equal(s.T(), uint64(4), s.monitor.Report.Auditor.State.FilesVerified.Load())
}

func (s *AuditorTestSuite) TestDetectsCorruptedFile() {
	s.writeContract("testnet", "0xaa", map[string]string{
		archive.MetadataFile: `{"language": "Solidity"}`,
		"sources/Token.sol":  "contract Token {}\n",
	})
	s.writeContract("testnet", "0xbb", map[string]string{
		archive.MetadataFile: `{}`,
	})

	// Flip the content after the manifest was computed
	err := archive.WriteFile(s.layout.ContractFile("testnet", "0xaa", "sources/Token.sol"), []byte("contract Mallory {}\n"))
	require.Nil(s.T(), err)

	auditor := s.runAudit()

	require.NotNil(s.T(), auditor.RunError())
	require.Contains(s.T(), auditor.RunError().Error(), "1 of 2 contracts failed")
	require.Equal(s.T(), uint64(1), s.monitor.Report.Auditor.Errors.ChecksumMismatches.Load())
	require.Equal(s.T(), uint64(1), s.monitor.Report.Auditor.State.ContractsPassed.Load())
}

func (s *AuditorTestSuite) TestDetectsMissingFile() {
	s.writeContract("testnet", "0xaa", map[string]string{
		archive.MetadataFile: `{}`,
		"sources/Token.sol":  "contract Token {}\n",
	})

	err := os.Remove(s.layout.ContractFile("testnet", "0xaa", "sources/Token.sol"))
	require.Nil(s.T(), err)

	auditor := s.runAudit()

	require.NotNil(s.T(), auditor.RunError())
	require.Equal(s.T(), uint64(1), s.monitor.Report.Auditor.Errors.MissingFiles.Load())
}

func (s *AuditorTestSuite) TestFlagsUnreadableManifest() {
	// Contract directory without a manifest at all
	err := archive.WriteFile(s.layout.ContractFile("testnet", "0xaa", archive.MetadataFile), []byte(`{}`))
	require.Nil(s.T(), err)

	auditor := s.runAudit()

	require.NotNil(s.T(), auditor.RunError())
	require.Equal(s.T(), uint64(1), s.monitor.Report.Auditor.Errors.ManifestRead.Load())
	require.Equal(s.T(), uint64(0), s.monitor.Report.Auditor.State.ContractsPassed.Load())
}

func (s *AuditorTestSuite) TestEmptyArchivePasses() {
	auditor := s.runAudit()
	require.Nil(s.T(), auditor.RunError())
	require.Equal(s.T(), uint64(0), s.monitor.Report.Auditor.State.ContractsAudited.Load())
}
