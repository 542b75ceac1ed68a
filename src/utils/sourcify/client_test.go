package sourcify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/eth"
	"github.com/evmarchive/archiver/src/utils/transport"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const wethAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

const wethMetadata = `{
	"language": "Solidity",
	"compiler": {"version": "0.4.19+commit.c4cbbb05"},
	"output": {"abi": [{"type": "function", "name": "deposit"}, {"type": "function", "name": "withdraw"}]},
	"sources": {"WETH9.sol": {"keccak256": "0x0"}}
}`

func TestSourcifyClientTestSuite(t *testing.T) {
	suite.Run(t, new(SourcifyClientTestSuite))
}

type SourcifyClientTestSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
}

func (s *SourcifyClientTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.config = config.Default()

	// Keep tests fast
	s.config.Transport.BackoffBase = 10 * time.Millisecond
	s.config.Transport.BackoffCap = 50 * time.Millisecond
	s.config.Transport.LimiterInterval = time.Millisecond
	s.config.Transport.LimiterBurst = 100
}

func (s *SourcifyClientTestSuite) TearDownTest() {
	s.cancel()
}

func (s *SourcifyClientTestSuite) newClient() *Client {
	return NewClient(s.config).
		WithClient(transport.NewClient(s.config))
}

func (s *SourcifyClientTestSuite) TestExactMatchAtFirstMirror() {
	metadataPath := fmt.Sprintf("/contracts/exact_match/1/%s/metadata.json", wethAddress)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == metadataPath {
			_, _ = w.Write([]byte(wethMetadata))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s.config.Sourcify.Mirrors = []string{server.URL}
	client := s.newClient()

	// Lowercase input must be checksummed before hitting the mirror
	out, err := client.FetchMetadata(s.ctx, 1, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	require.Nil(s.T(), err)
	require.Equal(s.T(), MatchExact, out.MatchQuality)
	require.Equal(s.T(), server.URL+metadataPath, out.OriginURL)
	require.Equal(s.T(), 2, out.Metadata.AbiEntryCount())
	require.Equal(s.T(), []byte(wethMetadata), out.Raw)
}

func (s *SourcifyClientTestSuite) TestFallsBackThroughCandidates() {
	var (
		mtx      sync.Mutex
		requests []string
	)
	record := func(mirror string, r *http.Request) {
		mtx.Lock()
		requests = append(requests, mirror+r.URL.Path)
		mtx.Unlock()
	}

	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record("first", r)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer first.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record("second", r)
		if r.URL.Path == fmt.Sprintf("/contracts/approximate_match/1/%s/metadata.json", wethAddress) {
			_, _ = w.Write([]byte(wethMetadata))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer second.Close()

	s.config.Sourcify.Mirrors = []string{first.URL, second.URL}
	client := s.newClient()

	out, err := client.FetchMetadata(s.ctx, 1, wethAddress)
	require.Nil(s.T(), err)
	require.Equal(s.T(), MatchApproximate, out.MatchQuality)

	// Exact candidates at every mirror come before any approximate one
	expected := []string{
		"first" + fmt.Sprintf("/contracts/exact_match/1/%s/metadata.json", wethAddress),
		"second" + fmt.Sprintf("/contracts/exact_match/1/%s/metadata.json", wethAddress),
		"first" + fmt.Sprintf("/contracts/approximate_match/1/%s/metadata.json", wethAddress),
		"second" + fmt.Sprintf("/contracts/approximate_match/1/%s/metadata.json", wethAddress),
	}
	require.Equal(s.T(), expected, requests)
}

func (s *SourcifyClientTestSuite) TestExhaustsAllCandidates() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s.config.Sourcify.Mirrors = []string{server.URL}
	client := s.newClient()

	_, err := client.FetchMetadata(s.ctx, 1, wethAddress)
	require.NotNil(s.T(), err)
	require.True(s.T(), errors.Is(err, ErrExhaustedSources))
}

func (s *SourcifyClientTestSuite) TestMalformedMetadataIsFatal() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	s.config.Sourcify.Mirrors = []string{server.URL}
	client := s.newClient()

	_, err := client.FetchMetadata(s.ctx, 1, wethAddress)
	require.NotNil(s.T(), err)

	var schemaErr *transport.SchemaValidationError
	require.True(s.T(), errors.As(err, &schemaErr))
}

func (s *SourcifyClientTestSuite) TestFetchAllSources() {
	served := []byte("pragma solidity ^0.4.19; contract WETH9 {}")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contracts/exact_match/1/0xabc/sources/contracts/WETH9.sol" {
			_, _ = w.Write(served)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := s.newClient()

	lookup := &Lookup{
		BaseURL: server.URL + "/contracts/exact_match/1/0xabc",
		Metadata: &Metadata{
			Sources: map[string]SourceEntry{
				// Embedded content never touches the network
				"embedded.sol": {Content: "pragma solidity ^0.4.19;"},
				// Served by the repository, pinned by hash
				"contracts/WETH9.sol": {Keccak256: "0x" + eth.Keccak256Hex(served)},
				// Missing everywhere, gets omitted
				"gone.sol": {},
			},
		},
	}

	files := client.FetchAllSources(s.ctx, lookup)
	require.Len(s.T(), files, 2)
	require.Equal(s.T(), []byte("pragma solidity ^0.4.19;"), files["embedded.sol"])
	require.Equal(s.T(), served, files["contracts/WETH9.sol"])
	require.NotContains(s.T(), files, "gone.sol")
}

func (s *SourcifyClientTestSuite) TestSourceHashMismatchIsOmitted() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered content"))
	}))
	defer server.Close()

	client := s.newClient()

	lookup := &Lookup{
		BaseURL: server.URL + "/contracts/exact_match/1/0xabc",
		Metadata: &Metadata{
			Sources: map[string]SourceEntry{
				"WETH9.sol": {Keccak256: "0x" + eth.Keccak256Hex([]byte("original content"))},
			},
		},
	}

	files := client.FetchAllSources(s.ctx, lookup)
	require.Empty(s.T(), files)
}

func (s *SourcifyClientTestSuite) TestFetchIPFSTriesGatewaysInOrder() {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.T(), "/ipfs/QmTestCid", r.URL.Path)
		_, _ = w.Write([]byte("ipfs content"))
	}))
	defer working.Close()

	s.config.Sourcify.IPFSGateways = []string{broken.URL + "/ipfs", working.URL + "/ipfs"}
	client := s.newClient()

	data, err := client.FetchIPFS(s.ctx, "QmTestCid")
	require.Nil(s.T(), err)
	require.Equal(s.T(), []byte("ipfs content"), data)
}

func (s *SourcifyClientTestSuite) TestFetchIPFSAggregatesFailures() {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()

	s.config.Sourcify.IPFSGateways = []string{broken.URL + "/a", broken.URL + "/b"}
	client := s.newClient()

	_, err := client.FetchIPFS(s.ctx, "QmMissing")
	require.NotNil(s.T(), err)
	require.Contains(s.T(), err.Error(), "/a")
	require.Contains(s.T(), err.Error(), "/b")
}
