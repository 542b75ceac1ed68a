package transport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

type StoreTestSuite struct {
	suite.Suite
}

func (s *StoreTestSuite) entry(url string) *CacheEntry {
	return &CacheEntry{
		Url:       url,
		Timestamp: time.Now().UnixMilli(),
		Headers: CachedHeaders{
			ETag:        `"v1"`,
			ContentType: "application/json",
		},
		Data: []byte(`{"language":"Solidity"}`),
	}
}

func (s *StoreTestSuite) TestFileStoreRoundTrip() {
	store, err := NewFileStore(s.T().TempDir())
	require.Nil(s.T(), err)

	key := CacheKey("https://repo.sourcify.dev/metadata.json")
	in := s.entry("https://repo.sourcify.dev/metadata.json")

	err = store.Put(key, in)
	require.Nil(s.T(), err)

	out, ok := store.Get(key)
	require.True(s.T(), ok)
	require.Equal(s.T(), in.Url, out.Url)
	require.Equal(s.T(), in.Headers.ETag, out.Headers.ETag)
	require.Equal(s.T(), in.Data, out.Data)
}

func (s *StoreTestSuite) TestFileStoreMissingKey() {
	store, err := NewFileStore(s.T().TempDir())
	require.Nil(s.T(), err)

	_, ok := store.Get(CacheKey("https://example.com/nope"))
	require.False(s.T(), ok)
}

func (s *StoreTestSuite) TestFileStoreTornEntryIsAMiss() {
	dir := s.T().TempDir()
	store, err := NewFileStore(dir)
	require.Nil(s.T(), err)

	key := CacheKey("https://example.com/torn")
	err = os.WriteFile(filepath.Join(dir, key+".json"), []byte(`{"url":"https`), 0o644)
	require.Nil(s.T(), err)

	_, ok := store.Get(key)
	require.False(s.T(), ok)
}

func (s *StoreTestSuite) TestFileStoreSweep() {
	dir := s.T().TempDir()
	store, err := NewFileStore(dir)
	require.Nil(s.T(), err)

	oldKey := CacheKey("https://example.com/old")
	newKey := CacheKey("https://example.com/new")
	require.Nil(s.T(), store.Put(oldKey, s.entry("https://example.com/old")))
	require.Nil(s.T(), store.Put(newKey, s.entry("https://example.com/new")))

	// Age the first entry past the retention period
	past := time.Now().Add(-72 * time.Hour)
	require.Nil(s.T(), os.Chtimes(filepath.Join(dir, oldKey+".json"), past, past))

	removed, err := store.Sweep(48 * time.Hour)
	require.Nil(s.T(), err)
	require.Equal(s.T(), 1, removed)

	_, ok := store.Get(oldKey)
	require.False(s.T(), ok)
	_, ok = store.Get(newKey)
	require.True(s.T(), ok)
}

func (s *StoreTestSuite) TestMemoryStoreRoundTrip() {
	store := NewMemoryStore(time.Hour)

	key := CacheKey("https://example.com/mem")
	require.Nil(s.T(), store.Put(key, s.entry("https://example.com/mem")))

	out, ok := store.Get(key)
	require.True(s.T(), ok)
	require.Equal(s.T(), "https://example.com/mem", out.Url)
}

func (s *StoreTestSuite) TestNopStoreDiscards() {
	store := NewNopStore()

	key := CacheKey("https://example.com/nop")
	require.Nil(s.T(), store.Put(key, s.entry("https://example.com/nop")))

	_, ok := store.Get(key)
	require.False(s.T(), ok)
}

func (s *StoreTestSuite) TestNewStorePicksBackend() {
	cfg := config.Default()

	cfg.Transport.CacheStore = "memory"
	store, err := NewStore(cfg)
	require.Nil(s.T(), err)
	require.IsType(s.T(), &MemoryStore{}, store)

	cfg.Transport.CacheStore = "none"
	store, err = NewStore(cfg)
	require.Nil(s.T(), err)
	require.IsType(s.T(), &NopStore{}, store)

	cfg.Transport.CacheStore = "file"
	cfg.Transport.CacheDir = s.T().TempDir()
	store, err = NewStore(cfg)
	require.Nil(s.T(), err)
	require.IsType(s.T(), &FileStore{}, store)

	cfg.Transport.CacheStore = "bogus"
	_, err = NewStore(cfg)
	require.NotNil(s.T(), err)
}
