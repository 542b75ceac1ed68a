package config

import (
	"time"

	"github.com/spf13/viper"
)

type Transport struct {
	// Time limit for a single HTTP request, bounds every retry individually
	RequestTimeout time.Duration

	// Total number of attempts for a retryable request
	MaxAttempts int

	// Backoff before attempt k (0-indexed) is BackoffBase * 2^k, capped at BackoffCap
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Upper bound of the random fraction added to each backoff wait
	BackoffMaxJitter float64

	// Which cache store backs GET responses: file | memory | none
	CacheStore string

	// Directory used by the file cache store
	CacheDir string

	// Cached payloads older than this are not served without revalidation
	CacheValidityWindow time.Duration

	// How long the memory store keeps entries before eviction
	CacheRetention time.Duration

	// Minimum interval between requests to a single host
	LimiterInterval time.Duration

	// Burst size of the per-host rate limiter
	LimiterBurst int

	// Connection setup limits
	DialerTimeout       time.Duration
	DialerKeepAlive     time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration
}

func setTransportDefaults() {
	viper.SetDefault("Transport.RequestTimeout", "30s")
	viper.SetDefault("Transport.MaxAttempts", "3")
	viper.SetDefault("Transport.BackoffBase", "500ms")
	viper.SetDefault("Transport.BackoffCap", "30s")
	viper.SetDefault("Transport.BackoffMaxJitter", "0.1")
	viper.SetDefault("Transport.CacheStore", "file")
	viper.SetDefault("Transport.CacheDir", "./cache")
	viper.SetDefault("Transport.CacheValidityWindow", "24h")
	viper.SetDefault("Transport.CacheRetention", "48h")
	viper.SetDefault("Transport.LimiterInterval", "200ms")
	viper.SetDefault("Transport.LimiterBurst", "5")
	viper.SetDefault("Transport.DialerTimeout", "30s")
	viper.SetDefault("Transport.DialerKeepAlive", "15s")
	viper.SetDefault("Transport.TLSHandshakeTimeout", "10s")
	viper.SetDefault("Transport.IdleConnTimeout", "31s")
}
