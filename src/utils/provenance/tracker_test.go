package provenance

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/transport"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

func TestTrackerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

type TrackerTestSuite struct {
	suite.Suite
	config  *config.Config
	tracker *Tracker
}

func (s *TrackerTestSuite) SetupTest() {
	s.config = config.Default()
	s.config.Archive.Dir = s.T().TempDir()
	s.config.Operator = "test-operator"
	s.tracker = NewTracker(s.config)
}

func (s *TrackerTestSuite) TestNeverArchived() {
	out, err := s.tracker.CheckStaleness("ethereum", testAddress, false)
	require.Nil(s.T(), err)
	require.False(s.T(), out.Exists)
	require.Nil(s.T(), out.Prior)
	require.True(s.T(), out.IsStale)
	require.False(s.T(), out.ShouldSkip)
}

func (s *TrackerTestSuite) TestFreshRecordSkips() {
	_, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-1")
	require.Nil(s.T(), err)

	out, err := s.tracker.CheckStaleness("ethereum", testAddress, false)
	require.Nil(s.T(), err)
	require.True(s.T(), out.Exists)
	require.False(s.T(), out.IsStale)
	require.True(s.T(), out.ShouldSkip)

	// Force always re-fetches, no matter how fresh the record is
	out, err = s.tracker.CheckStaleness("ethereum", testAddress, true)
	require.Nil(s.T(), err)
	require.False(s.T(), out.ShouldSkip)
}

func (s *TrackerTestSuite) TestStaleRecordRefetches() {
	record, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-1")
	require.Nil(s.T(), err)

	// Age the record past the threshold
	record.LastUpdatedAt = time.Now().Add(-25 * time.Hour)
	path := s.tracker.path("ethereum", testAddress)
	require.Nil(s.T(), archive.SaveJSON(path, record))

	out, err := s.tracker.CheckStaleness("ethereum", testAddress, false)
	require.Nil(s.T(), err)
	require.True(s.T(), out.Exists)
	require.True(s.T(), out.IsStale)
	require.False(s.T(), out.ShouldSkip)
}

func (s *TrackerTestSuite) TestRepeatedSuccessPreservesFirstSeen() {
	first, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-1")
	require.Nil(s.T(), err)

	second, err := s.tracker.RecordSuccess("ethereum", testAddress, SourceExplorer, "run-2")
	require.Nil(s.T(), err)

	require.True(s.T(), first.FirstSeenAt.Equal(second.FirstSeenAt))
	require.False(s.T(), second.LastUpdatedAt.Before(second.FirstSeenAt))
	require.Equal(s.T(), []string{"explorer", "primary"}, second.SourcesUsed)
	require.Equal(s.T(), "run-2", second.FetchRunId)
	require.Equal(s.T(), "test-operator", second.Operator)
}

func (s *TrackerTestSuite) TestMarkOrphaned() {
	_, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-1")
	require.Nil(s.T(), err)

	before, err := s.tracker.Load("ethereum", testAddress)
	require.Nil(s.T(), err)

	require.Nil(s.T(), s.tracker.MarkOrphaned("ethereum", testAddress))

	after, err := s.tracker.Load("ethereum", testAddress)
	require.Nil(s.T(), err)
	require.True(s.T(), after.Orphaned)

	// Orphaning is bookkeeping, not a fetch
	require.Equal(s.T(), before.LastUpdatedAt, after.LastUpdatedAt)

	// A later successful fetch revives the entry
	revived, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-2")
	require.Nil(s.T(), err)
	require.False(s.T(), revived.Orphaned)
}

func (s *TrackerTestSuite) TestMarkOrphanedWithoutRecord() {
	err := s.tracker.MarkOrphaned("ethereum", testAddress)
	require.NotNil(s.T(), err)
}

func (s *TrackerTestSuite) TestMalformedRecord() {
	path := s.tracker.path("ethereum", testAddress)
	require.Nil(s.T(), archive.WriteFile(path, []byte("{torn")))

	_, err := s.tracker.CheckStaleness("ethereum", testAddress, false)
	var schemaErr *transport.SchemaValidationError
	require.True(s.T(), errors.As(err, &schemaErr))

	// A successful fetch overwrites the unreadable record
	record, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-1")
	require.Nil(s.T(), err)
	require.Equal(s.T(), []string{"primary"}, record.SourcesUsed)
}

func (s *TrackerTestSuite) TestPersistedFieldNames() {
	_, err := s.tracker.RecordSuccess("ethereum", testAddress, SourcePrimary, "run-1")
	require.Nil(s.T(), err)

	data, err := os.ReadFile(s.tracker.path("ethereum", testAddress))
	require.Nil(s.T(), err)

	// Consumers parse these names, they are part of the archive format
	for _, field := range []string{
		`"firstSeenAt"`, `"lastUpdatedAt"`, `"tools"`, `"name"`, `"version"`,
		`"sourcesUsed"`, `"fetchRunId"`, `"operator"`,
	} {
		require.Contains(s.T(), string(data), field)
	}
}
