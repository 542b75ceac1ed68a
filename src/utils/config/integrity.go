package config

import (
	"time"

	"github.com/spf13/viper"
)

type Integrity struct {
	// Is on-chain bytecode verification attempted after a successful fetch
	VerifyBytecode bool

	// Time limit for the eth_getCode call
	RPCTimeout time.Duration
}

func setIntegrityDefaults() {
	viper.SetDefault("Integrity.VerifyBytecode", "true")
	viper.SetDefault("Integrity.RPCTimeout", "30s")
}
