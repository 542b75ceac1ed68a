package report

import (
	"go.uber.org/atomic"
)

type TransportErrors struct {
	Network    atomic.Uint64 `json:"network"`
	HttpStatus atomic.Uint64 `json:"http_status"`
	RateLimit  atomic.Uint64 `json:"rate_limit"`
	CacheRead  atomic.Uint64 `json:"cache_read"`
	CacheWrite atomic.Uint64 `json:"cache_write"`
}

type TransportState struct {
	RequestsMade       atomic.Uint64 `json:"requests_made"`
	Retries            atomic.Uint64 `json:"retries"`
	CacheHits          atomic.Uint64 `json:"cache_hits"`
	CacheMisses        atomic.Uint64 `json:"cache_misses"`
	CacheRevalidations atomic.Uint64 `json:"cache_revalidations"`
	BytesDownloaded    atomic.Uint64 `json:"bytes_downloaded"`
}

type TransportReport struct {
	State  TransportState  `json:"state"`
	Errors TransportErrors `json:"errors"`
}
