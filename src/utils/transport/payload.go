package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Response data returned to callers
type Payload struct {
	Url         string
	StatusCode  int
	ContentType string
	Data        []byte

	// True when served from the cache without hitting the network
	FromCache bool
}

// Headers kept for conditional requests and audits
type CachedHeaders struct {
	ETag          string `json:"etag,omitempty"`
	LastModified  string `json:"last-modified,omitempty"`
	ContentType   string `json:"content-type,omitempty"`
	ContentLength int64  `json:"content-length,omitempty"`
}

// Entry persisted by cache stores, one per url
type CacheEntry struct {
	Url       string        `json:"url"`
	Timestamp int64         `json:"timestamp"`
	Headers   CachedHeaders `json:"headers"`
	Data      []byte        `json:"data"`
}

func (self *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(self.Timestamp))
}

func (self *CacheEntry) toPayload() *Payload {
	return &Payload{
		Url:         self.Url,
		StatusCode:  200,
		ContentType: self.Headers.ContentType,
		Data:        self.Data,
		FromCache:   true,
	}
}

// Cache keys are content addressed by url
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
