package config

import (
	"github.com/spf13/viper"
)

type Sourcify struct {
	// Repository mirrors queried in order for contract metadata
	Mirrors []string

	// Gateways tried in order for content-addressed blobs
	IPFSGateways []string

	// Upper bound of concurrent source file downloads per contract
	SourceWorkers int
}

func setSourcifyDefaults() {
	viper.SetDefault("Sourcify.Mirrors", []string{"https://repo.sourcify.dev"})
	viper.SetDefault("Sourcify.IPFSGateways", []string{"https://ipfs.io/ipfs", "https://cloudflare-ipfs.com/ipfs"})
	viper.SetDefault("Sourcify.SourceWorkers", "8")
}
