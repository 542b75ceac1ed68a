package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/eth"
	"github.com/evmarchive/archiver/src/utils/logger"
	"github.com/evmarchive/archiver/src/utils/transport"

	"github.com/sirupsen/logrus"
)

// The explorer knows the contract but has no verified sources for it
var ErrUnverified = errors.New("contract source not verified at the explorer")

// Block explorer API client, the fallback source when no repository has
// the contract
type Client struct {
	client *transport.Client
	config *config.Config
	log    *logrus.Entry
}

func NewClient(config *config.Config) (self *Client) {
	self = new(Client)
	self.config = config
	self.log = logger.NewSublogger("explorer")
	return
}

func (self *Client) WithClient(client *transport.Client) *Client {
	self.client = client
	return self
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Verified source entry as served by etherscan compatible APIs
type SourceCode struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	ConstructorArguments string `json:"ConstructorArguments"`
	EVMVersion           string `json:"EVMVersion"`
	Library              string `json:"Library"`
	LicenseType          string `json:"LicenseType"`
	Proxy                string `json:"Proxy"`
	Implementation       string `json:"Implementation"`
	SwarmSource          string `json:"SwarmSource"`
}

func (self *Client) FetchContractSource(ctx context.Context, chain *config.Chain, address string) (out *Normalized, err error) {
	if chain.ExplorerAPIURL == "" {
		err = fmt.Errorf("no explorer configured for chain: %s", chain.Name)
		return
	}

	checksummed, err := eth.ChecksumAddress(address)
	if err != nil {
		return
	}

	query := url.Values{}
	query.Set("module", "contract")
	query.Set("action", "getsourcecode")
	query.Set("address", checksummed)
	if chain.ExplorerAPIKey != "" {
		query.Set("apikey", chain.ExplorerAPIKey)
	}

	payload, err := self.client.Get(ctx, chain.ExplorerAPIURL+"?"+query.Encode())
	if err != nil {
		return
	}

	var response apiResponse
	err = json.Unmarshal(payload.Data, &response)
	if err != nil {
		return nil, &transport.SchemaValidationError{What: "explorer response", Err: err}
	}

	if response.Status != "1" {
		err = fmt.Errorf("explorer request failed: %s", response.Message)
		return
	}

	var results []SourceCode
	err = json.Unmarshal(response.Result, &results)
	if err != nil {
		return nil, &transport.SchemaValidationError{What: "explorer result", Err: err}
	}

	if len(results) == 0 {
		return nil, ErrUnverified
	}

	source := &results[0]
	if source.SourceCode == "" {
		return nil, ErrUnverified
	}

	self.log.WithField("contract", source.ContractName).
		WithField("address", checksummed).
		Debug("Explorer returned verified source")

	return Normalize(source)
}
