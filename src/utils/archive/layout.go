package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well known files inside a contract directory
const (
	MetadataFile     = "metadata.json"
	AbiFile          = "abi.json"
	ProvenanceFile   = "provenance.json"
	ChecksumsFile    = "checksums.json"
	VerificationFile = "verification.json"
	SourcesDir       = "sources"
)

// One archived contract on disk
type Entry struct {
	ChainName string
	Address   string
}

// Resolves locations inside the archive tree.
// Contracts live under <root>/<chain name>/<checksummed address>/.
type Layout struct {
	root string
}

func NewLayout(root string) (self *Layout) {
	self = new(Layout)
	self.root = root
	return
}

func (self *Layout) Root() string {
	return self.root
}

func (self *Layout) ContractDir(chainName, address string) string {
	return filepath.Join(self.root, chainName, address)
}

func (self *Layout) ContractFile(chainName, address, name string) string {
	return filepath.Join(self.ContractDir(chainName, address), name)
}

// Source paths come from remote metadata, keep them inside the sources dir
func (self *Layout) SourcePath(chainName, address, relPath string) (out string, err error) {
	clean, err := CleanSourcePath(relPath)
	if err != nil {
		return
	}
	return filepath.Join(self.ContractDir(chainName, address), SourcesDir, clean), nil
}

// Rejects escapes from the sources dir, remote paths are not trusted
func CleanSourcePath(relPath string) (out string, err error) {
	out = filepath.ToSlash(filepath.Clean("/" + relPath))
	out = strings.TrimPrefix(out, "/")
	if out == "" || out == "." {
		err = fmt.Errorf("empty source path: %s", relPath)
		return
	}
	return out, nil
}

// Lists archived contracts, one entry per <chain>/<address> directory
func (self *Layout) ListContracts() (entries []Entry, err error) {
	chains, err := os.ReadDir(self.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return
	}

	for _, chain := range chains {
		if !chain.IsDir() {
			continue
		}
		contracts, err := os.ReadDir(filepath.Join(self.root, chain.Name()))
		if err != nil {
			return nil, err
		}
		for _, contract := range contracts {
			if !contract.IsDir() {
				continue
			}
			entries = append(entries, Entry{
				ChainName: chain.Name(),
				Address:   contract.Name(),
			})
		}
	}
	return
}

// Writes the file, creating parent dirs. Whole file overwrite.
func WriteFile(path string, data []byte) (err error) {
	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return
	}
	/* #nosec */
	return os.WriteFile(path, data, 0o644)
}

func SaveJSON(path string, v interface{}) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	return WriteFile(path, append(data, '\n'))
}

func LoadJSON(path string, v interface{}) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	return json.Unmarshal(data, v)
}
