package model

import (
	"encoding/json"
)

// Published on the Redis channel after a contract is archived
type ContractArchivedNotification struct {
	ChainId      int64  `json:"chainId"`
	ChainName    string `json:"chainName"`
	Address      string `json:"address"`
	MatchQuality string `json:"matchQuality"`
	Source       string `json:"source"`
	RunId        string `json:"runId"`
}

func (self *ContractArchivedNotification) MarshalBinary() (data []byte, err error) {
	return json.Marshal(self)
}
