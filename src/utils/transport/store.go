package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/logger"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Cache backend used by the client for GET responses
type Store interface {
	Get(key string) (entry *CacheEntry, ok bool)
	Put(key string, entry *CacheEntry) error
}

// Implemented by stores that can drop entries older than the retention period
type Sweeper interface {
	Sweep(olderThan time.Duration) (removed int, err error)
}

// Picks the cache backend based on the configuration
func NewStore(config *config.Config) (store Store, err error) {
	switch config.Transport.CacheStore {
	case "file":
		return NewFileStore(config.Transport.CacheDir)
	case "memory":
		return NewMemoryStore(config.Transport.CacheRetention), nil
	case "none":
		return NewNopStore(), nil
	default:
		err = fmt.Errorf("unknown cache store: %s", config.Transport.CacheStore)
		return
	}
}

// One JSON file per entry under the cache dir.
// Writes overwrite the whole file, a torn read degrades to a cache miss.
type FileStore struct {
	dir string
	log *logrus.Entry
}

func NewFileStore(dir string) (self *FileStore, err error) {
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return
	}

	self = new(FileStore)
	self.dir = dir
	self.log = logger.NewSublogger("cache-file")
	return
}

func (self *FileStore) path(key string) string {
	return filepath.Join(self.dir, key+".json")
}

func (self *FileStore) Get(key string) (entry *CacheEntry, ok bool) {
	data, err := os.ReadFile(self.path(key))
	if err != nil {
		return
	}

	entry = new(CacheEntry)
	err = json.Unmarshal(data, entry)
	if err != nil {
		// Corrupted or torn entry, treat as a miss
		self.log.WithError(err).WithField("key", key).Debug("Dropping unreadable cache entry")
		return nil, false
	}
	return entry, true
}

func (self *FileStore) Put(key string, entry *CacheEntry) (err error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	/* #nosec */
	return os.WriteFile(self.path(key), data, 0o644)
}

func (self *FileStore) Sweep(olderThan time.Duration) (removed int, err error) {
	entries, err := os.ReadDir(self.dir)
	if err != nil {
		return
	}

	deadline := time.Now().Add(-olderThan)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(deadline) {
			continue
		}
		err = os.Remove(filepath.Join(self.dir, e.Name()))
		if err != nil {
			self.log.WithError(err).WithField("file", e.Name()).Warn("Failed to remove expired cache entry")
			continue
		}
		removed += 1
	}
	return
}

// In-memory cache, entries expire after the retention period
type MemoryStore struct {
	entries *cache.Cache
}

func NewMemoryStore(retention time.Duration) (self *MemoryStore) {
	self = new(MemoryStore)
	self.entries = cache.New(retention, retention/2)
	return
}

func (self *MemoryStore) Get(key string) (entry *CacheEntry, ok bool) {
	v, ok := self.entries.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok = v.(*CacheEntry)
	return
}

func (self *MemoryStore) Put(key string, entry *CacheEntry) (err error) {
	self.entries.Set(key, entry, cache.DefaultExpiration)
	return nil
}

func (self *MemoryStore) Sweep(olderThan time.Duration) (removed int, err error) {
	before := self.entries.ItemCount()
	self.entries.DeleteExpired()
	return before - self.entries.ItemCount(), nil
}

// Discards everything, used by dry runs
type NopStore struct{}

func NewNopStore() *NopStore {
	return &NopStore{}
}

func (self *NopStore) Get(key string) (entry *CacheEntry, ok bool) {
	return nil, false
}

func (self *NopStore) Put(key string, entry *CacheEntry) error {
	return nil
}
