package sourcify

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Grade of confidence that the archived sources compile to the deployed bytecode
type MatchQuality string

const (
	MatchExact       MatchQuality = "exact"
	MatchApproximate MatchQuality = "approximate"

	// Assigned to fallback fetches from a block explorer, the repository
	// itself never serves this grade
	MatchExplorer MatchQuality = "explorer"
)

// Solidity metadata document as served by the repository.
// Only the fields the archiver inspects are typed, the rest stays raw so
// the persisted file is always the exact payload that was fetched.
type Metadata struct {
	Language string                 `json:"language,omitempty"`
	Compiler Compiler               `json:"compiler,omitempty"`
	Settings json.RawMessage        `json:"settings,omitempty"`
	Sources  map[string]SourceEntry `json:"sources,omitempty"`
	Output   Output                 `json:"output,omitempty"`

	// Some toolchains embed the runtime bytecode, most repository payloads don't
	DeployedBytecode json.RawMessage `json:"deployedBytecode,omitempty"`
}

type Compiler struct {
	Version string `json:"version,omitempty"`
}

type Output struct {
	Abi     json.RawMessage `json:"abi,omitempty"`
	Devdoc  json.RawMessage `json:"devdoc,omitempty"`
	Userdoc json.RawMessage `json:"userdoc,omitempty"`
}

type SourceEntry struct {
	Keccak256 string   `json:"keccak256,omitempty"`
	Content   string   `json:"content,omitempty"`
	Urls      []string `json:"urls,omitempty"`
	License   string   `json:"license,omitempty"`
}

// Result of a successful metadata lookup
type Lookup struct {
	Metadata *Metadata

	// Exact payload the mirror served, persisted verbatim
	Raw []byte

	MatchQuality MatchQuality

	// Metadata URL that answered
	OriginURL string

	// Contract directory on the mirror that answered, source URLs build on it
	BaseURL string

	FetchedAt time.Time
}

func (self *Metadata) AbiEntryCount() int {
	if len(self.Output.Abi) == 0 {
		return 0
	}
	var entries []json.RawMessage
	err := json.Unmarshal(self.Output.Abi, &entries)
	if err != nil {
		return 0
	}
	return len(entries)
}

// Embedded runtime bytecode hex if the metadata carries one.
// Handles both the bare string form and the solc artifact object form.
func (self *Metadata) EmbeddedDeployedBytecode() string {
	if len(self.DeployedBytecode) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(self.DeployedBytecode, &asString); err == nil {
		return asString
	}

	var asObject struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(self.DeployedBytecode, &asObject); err == nil {
		return asObject.Object
	}

	return ""
}

const ipfsUrlPrefix = "dweb:/ipfs/"

// CID referenced by the source entry's urls, empty when none
func (self *SourceEntry) IpfsCid() string {
	for _, u := range self.Urls {
		if strings.HasPrefix(u, ipfsUrlPrefix) {
			return strings.TrimPrefix(u, ipfsUrlPrefix)
		}
	}
	return ""
}

// All CIDs referenced across the metadata's sources, order follows the
// sorted source paths so the output is deterministic
func (self *Metadata) IpfsCids() (cids []string) {
	seen := make(map[string]struct{})
	for _, path := range sortedKeys(self.Sources) {
		entry := self.Sources[path]
		cid := entry.IpfsCid()
		if cid == "" {
			continue
		}
		if _, ok := seen[cid]; ok {
			continue
		}
		seen[cid] = struct{}{}
		cids = append(cids, cid)
	}
	return
}

func sortedKeys(m map[string]SourceEntry) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
