package config

import (
	"github.com/spf13/viper"
)

type Auditor struct {
	// Worker pool for auditing archived contracts
	WorkerPoolSize int

	// Max contracts waiting in the auditor's queue
	WorkerQueueSize int

	// Re-check archived bytecode against the chain when an RPC endpoint is configured
	VerifyBytecode bool
}

func setAuditorDefaults() {
	viper.SetDefault("Auditor.WorkerPoolSize", "4")
	viper.SetDefault("Auditor.WorkerQueueSize", "32")
	viper.SetDefault("Auditor.VerifyBytecode", "false")
}
