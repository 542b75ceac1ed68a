package config

import (
	"time"

	"github.com/spf13/viper"
)

type Provenance struct {
	// Max age of a provenance record before a re-fetch is considered necessary
	StalenessThreshold time.Duration
}

func setProvenanceDefaults() {
	viper.SetDefault("Provenance.StalenessThreshold", "24h")
}
