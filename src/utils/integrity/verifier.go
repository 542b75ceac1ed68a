package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/eth"
	"github.com/evmarchive/archiver/src/utils/logger"
	"github.com/evmarchive/archiver/src/utils/sourcify"

	"github.com/sirupsen/logrus"
)

// VerificationResult is persisted as verification.json. Field names are
// part of the archive format.
//
// Match is true iff both bytecode hashes are present and equal. Best
// effort: a missing RPC endpoint or missing embedded bytecode downgrades
// to a warning, only an actual mismatch is an error.
type VerificationResult struct {
	OnChainDeployedHash  string    `json:"onChainDeployedHash,omitempty"`
	MetadataDeployedHash string    `json:"metadataDeployedHash,omitempty"`
	CreationHash         string    `json:"creationHash,omitempty"`
	Match                bool      `json:"match"`
	IpfsCids             []string  `json:"ipfsCids,omitempty"`
	SourcifyMatchType    string    `json:"sourcifyMatchType,omitempty"`
	VerifiedAt           time.Time `json:"verifiedAt"`
	Errors               []string  `json:"errors"`
	Warnings             []string  `json:"warnings"`
}

// Verifier compares archived bytecode against the chain
type Verifier struct {
	config *config.Config
	log    *logrus.Entry
}

func NewVerifier(config *config.Config) (self *Verifier) {
	self = new(Verifier)
	self.config = config
	self.log = logger.NewSublogger("verifier")
	return
}

// Verify hashes the bytecode embedded in the archived metadata and, when
// the chain has an RPC endpoint, the live on-chain bytecode.
// matchQuality tags the result with how the source repository graded the
// match, empty for explorer fetches.
func (self *Verifier) Verify(ctx context.Context, chain *config.Chain, address string, metadata *sourcify.Metadata, matchQuality string) (out *VerificationResult) {
	out = &VerificationResult{
		VerifiedAt:        time.Now().UTC(),
		SourcifyMatchType: matchQuality,
		Errors:            []string{},
		Warnings:          []string{},
	}

	if metadata != nil {
		out.IpfsCids = metadata.IpfsCids()
		self.hashEmbedded(metadata, out)
	} else {
		out.Warnings = append(out.Warnings, "no metadata to verify")
	}

	self.hashOnChain(ctx, chain, address, out)

	out.Match = out.OnChainDeployedHash != "" &&
		out.OnChainDeployedHash == out.MetadataDeployedHash

	if out.OnChainDeployedHash != "" && out.MetadataDeployedHash != "" && !out.Match {
		mismatch := &IntegrityError{
			What:     "deployed bytecode",
			Expected: out.MetadataDeployedHash,
			Actual:   out.OnChainDeployedHash,
		}
		out.Errors = append(out.Errors, mismatch.Error())
		self.log.WithField("address", address).
			WithField("chain", chain.Name).
			Warn("Archived bytecode does not hash to the on-chain code")
	}

	return
}

func (self *Verifier) hashEmbedded(metadata *sourcify.Metadata, out *VerificationResult) {
	embedded := metadata.EmbeddedDeployedBytecode()
	if embedded == "" {
		out.Warnings = append(out.Warnings, "metadata carries no deployed bytecode")
		return
	}

	decoded, err := eth.DecodeBytecode(embedded)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("embedded bytecode does not decode: %s", err))
		return
	}

	out.MetadataDeployedHash = eth.Keccak256Hex(decoded)
}

func (self *Verifier) hashOnChain(ctx context.Context, chain *config.Chain, address string, out *VerificationResult) {
	if chain.RPCURL == "" {
		out.Warnings = append(out.Warnings, fmt.Sprintf("no rpc endpoint configured for chain %s", chain.Name))
		return
	}

	client, err := eth.GetEthClient(self.log, chain.RPCURL)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("rpc endpoint unreachable: %s", err))
		return
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, self.config.Integrity.RPCTimeout)
	defer cancel()

	code, err := eth.GetDeployedCode(ctx, client, address)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("eth_getCode failed: %s", err))
		return
	}
	if len(code) == 0 {
		out.Warnings = append(out.Warnings, "no deployed bytecode on chain")
		return
	}

	out.OnChainDeployedHash = eth.Keccak256Hex(code)
}
