package config

import (
	"time"

	"github.com/spf13/viper"
)

type Fetcher struct {
	// Re-fetch contracts even if their provenance record is fresh
	Force bool

	// Perform staleness reads and fetches but skip every mutating step
	DryRun bool

	// Abort the whole run on the first failed contract
	Strict bool

	// Abort the run with an error when more than this fraction of contracts failed
	MaxFailureRate float64

	// How many archived contracts are indexed in one database transaction
	StoreBatchSize int

	// How often a partial batch is flushed to the database
	StoreInterval time.Duration

	// Max time a database flush is retried. 0 means no limit
	StoreBackoffMaxElapsedTime time.Duration

	// Max time between database flush retries
	StoreBackoffMaxInterval time.Duration

	// Redis channel archive notifications are published to
	PublisherRedisChannelName string

	// Daemon mode: how often the archive is swept for stale contracts
	SweepInterval time.Duration
}

func setFetcherDefaults() {
	viper.SetDefault("Fetcher.Force", "false")
	viper.SetDefault("Fetcher.DryRun", "false")
	viper.SetDefault("Fetcher.Strict", "false")
	viper.SetDefault("Fetcher.MaxFailureRate", "0.5")
	viper.SetDefault("Fetcher.StoreBatchSize", "10")
	viper.SetDefault("Fetcher.StoreInterval", "1s")
	viper.SetDefault("Fetcher.StoreBackoffMaxElapsedTime", "5m")
	viper.SetDefault("Fetcher.StoreBackoffMaxInterval", "30s")
	viper.SetDefault("Fetcher.PublisherRedisChannelName", "contracts-archived")
	viper.SetDefault("Fetcher.SweepInterval", "6h")
}
