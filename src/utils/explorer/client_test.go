package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/transport"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const daiAddress = "0x6B175474E89094C44Da98b954EedeAC495271d0F"

func TestExplorerClientTestSuite(t *testing.T) {
	suite.Run(t, new(ExplorerClientTestSuite))
}

type ExplorerClientTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
}

func (s *ExplorerClientTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.config = config.Default()

	// Keep tests fast
	s.config.Transport.BackoffBase = 10 * time.Millisecond
	s.config.Transport.BackoffCap = 50 * time.Millisecond
	s.config.Transport.LimiterInterval = time.Millisecond
	s.config.Transport.LimiterBurst = 100
}

func (s *ExplorerClientTestSuite) TearDownTest() {
	s.cancel()
}

func (s *ExplorerClientTestSuite) newClient() *Client {
	return NewClient(s.config).
		WithClient(transport.NewClient(s.config))
}

func apiReply(result interface{}) []byte {
	out, err := json.Marshal(map[string]interface{}{
		"status":  "1",
		"message": "OK",
		"result":  []interface{}{result},
	})
	if err != nil {
		panic(err)
	}
	return out
}

func (s *ExplorerClientTestSuite) TestFetchFlatSource() {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write(apiReply(SourceCode{
			SourceCode:       "pragma solidity ^0.5.12;\ncontract Dai {}\n",
			ABI:              `[{"type":"function","name":"transfer"}]`,
			ContractName:     "Dai",
			CompilerVersion:  "v0.5.12+commit.7709ece9",
			OptimizationUsed: "1",
			Runs:             "200",
		}))
	}))
	defer server.Close()

	chain := &config.Chain{Name: "ethereum", ChainId: 1, ExplorerAPIURL: server.URL, ExplorerAPIKey: "secret"}

	// Lowercase input must be checksummed before reaching the explorer
	out, err := s.newClient().FetchContractSource(s.ctx, chain, "0x6b175474e89094c44da98b954eedeac495271d0f")
	require.Nil(s.T(), err)

	require.Contains(s.T(), gotQuery, "module=contract")
	require.Contains(s.T(), gotQuery, "action=getsourcecode")
	require.Contains(s.T(), gotQuery, "address="+daiAddress)
	require.Contains(s.T(), gotQuery, "apikey=secret")

	require.Equal(s.T(), "Dai", out.ContractName)
	require.Len(s.T(), out.Sources, 1)
	require.Contains(s.T(), out.Sources, "Dai.sol")
	require.NotEmpty(s.T(), out.Abi)

	require.Equal(s.T(), "Solidity", out.Metadata.Language)
	require.Equal(s.T(), "0.5.12+commit.7709ece9", out.Metadata.Compiler.Version)
	require.NotEmpty(s.T(), out.Metadata.Sources["Dai.sol"].Keccak256)

	// The synthesized document is what gets archived, it has to parse back
	var roundTrip map[string]interface{}
	require.Nil(s.T(), json.Unmarshal(out.Raw, &roundTrip))
	require.Contains(s.T(), roundTrip, "settings")
}

func (s *ExplorerClientTestSuite) TestUnverifiedContract() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(apiReply(SourceCode{
			SourceCode: "",
			ABI:        "Contract source code not verified",
		}))
	}))
	defer server.Close()

	chain := &config.Chain{Name: "ethereum", ChainId: 1, ExplorerAPIURL: server.URL}

	out, err := s.newClient().FetchContractSource(s.ctx, chain, daiAddress)
	require.Nil(s.T(), out)
	require.True(s.T(), errors.Is(err, ErrUnverified))
}

func (s *ExplorerClientTestSuite) TestExplorerRejection() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
	}))
	defer server.Close()

	chain := &config.Chain{Name: "ethereum", ChainId: 1, ExplorerAPIURL: server.URL}

	_, err := s.newClient().FetchContractSource(s.ctx, chain, daiAddress)
	require.NotNil(s.T(), err)
	require.Contains(s.T(), err.Error(), "NOTOK")
}

func (s *ExplorerClientTestSuite) TestNoExplorerConfigured() {
	chain := &config.Chain{Name: "devnet", ChainId: 1337}

	_, err := s.newClient().FetchContractSource(s.ctx, chain, daiAddress)
	require.NotNil(s.T(), err)
	require.Contains(s.T(), err.Error(), "devnet")
}

func (s *ExplorerClientTestSuite) TestMalformedResponse() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	chain := &config.Chain{Name: "ethereum", ChainId: 1, ExplorerAPIURL: server.URL}

	_, err := s.newClient().FetchContractSource(s.ctx, chain, daiAddress)
	var schemaErr *transport.SchemaValidationError
	require.True(s.T(), errors.As(err, &schemaErr))
}

func TestNormalizeDoubleWrapped(t *testing.T) {
	out, err := Normalize(&SourceCode{
		SourceCode:      `{{"language":"Solidity","sources":{"contracts/Token.sol":{"content":"contract Token {}"},"lib/Math.sol":{"content":"library Math {}"}},"settings":{"optimizer":{"enabled":true,"runs":999}}}}`,
		ABI:             `[]`,
		ContractName:    "Token",
		CompilerVersion: "v0.8.19+commit.7dd6d404",
	})
	require.Nil(t, err)

	require.Len(t, out.Sources, 2)
	require.Equal(t, []byte("contract Token {}"), out.Sources["contracts/Token.sol"])
	require.Equal(t, []byte("library Math {}"), out.Sources["lib/Math.sol"])

	// Settings come from the standard json, not the synthesized defaults
	require.Contains(t, string(out.Metadata.Settings), `"runs":999`)
	require.Len(t, out.Metadata.Sources, 2)
}

func TestNormalizeStandardJson(t *testing.T) {
	out, err := Normalize(&SourceCode{
		SourceCode:      `{"language":"Solidity","sources":{"Vault.sol":{"content":"contract Vault {}"}}}`,
		ABI:             `[]`,
		ContractName:    "Vault",
		CompilerVersion: "v0.8.21+commit.d9974bed",
	})
	require.Nil(t, err)

	require.Len(t, out.Sources, 1)
	require.Equal(t, []byte("contract Vault {}"), out.Sources["Vault.sol"])
}

func TestNormalizeVyper(t *testing.T) {
	out, err := Normalize(&SourceCode{
		SourceCode:      "# @version 0.2.12\n",
		ABI:             `[]`,
		ContractName:    "Swap",
		CompilerVersion: "vyper:0.2.12",
	})
	require.Nil(t, err)

	require.Contains(t, out.Sources, "Swap.vy")
	require.Equal(t, "Vyper", out.Metadata.Language)
}

func TestNormalizeEmptyStandardJson(t *testing.T) {
	_, err := Normalize(&SourceCode{
		SourceCode:      `{"language":"Solidity","sources":{}}`,
		ContractName:    "Empty",
		CompilerVersion: "v0.8.0",
	})
	var schemaErr *transport.SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
}
