package config

import (
	"github.com/spf13/viper"
)

type Archive struct {
	// Root directory contract archives are written to
	Dir string
}

func setArchiveDefaults() {
	viper.SetDefault("Archive.Dir", "./archive")
}
