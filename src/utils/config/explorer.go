package config

import (
	"github.com/spf13/viper"
)

type Explorer struct {
	// Is the block explorer fallback used when the primary source is exhausted
	Enabled bool
}

func setExplorerDefaults() {
	viper.SetDefault("Explorer.Enabled", "true")
}
