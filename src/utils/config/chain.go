package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Chain struct {
	// Short name used in archive paths and logs
	Name string

	// Numeric chain id used in lookup URLs
	ChainId int64

	// JSON-RPC endpoint used for bytecode verification, empty disables it
	RPCURL string

	// Block explorer API used as the fallback source, empty disables it
	ExplorerAPIURL string

	// Optional explorer API key
	ExplorerAPIKey string
}

func setChainDefaults() {
	viper.SetDefault("Chains", []Chain{{
		Name:           "ethereum",
		ChainId:        1,
		ExplorerAPIURL: "https://api.etherscan.io/api",
	}, {
		Name:           "sepolia",
		ChainId:        11155111,
		ExplorerAPIURL: "https://api-sepolia.etherscan.io/api",
	}})
}

// Applies indexed env overrides that viper.Unmarshal doesn't merge into slices
func unmarshalChains(config *Config) (err error) {
	for i := 0; i < MAX_SLICE_LEN; i++ {
		prefix := fmt.Sprintf("chains[%d].", i)

		name := viper.GetString(prefix + "name")
		if name == "" {
			continue
		}

		chain := Chain{
			Name:           name,
			ChainId:        viper.GetInt64(prefix + "chainid"),
			RPCURL:         viper.GetString(prefix + "rpcurl"),
			ExplorerAPIURL: viper.GetString(prefix + "explorerapiurl"),
			ExplorerAPIKey: viper.GetString(prefix + "explorerapikey"),
		}

		if i < len(config.Chains) {
			config.Chains[i] = chain
		} else {
			config.Chains = append(config.Chains, chain)
		}
	}
	return nil
}

func (self *Config) GetChainByName(name string) (chain *Chain, err error) {
	for i := range self.Chains {
		if self.Chains[i].Name == name {
			return &self.Chains[i], nil
		}
	}
	err = fmt.Errorf("chain not configured: %s", name)
	return
}
