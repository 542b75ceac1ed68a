package fetch

import (
	"path"
	"sort"

	"github.com/evmarchive/archiver/src/utils/archive"
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/integrity"
	"github.com/evmarchive/archiver/src/utils/logger"
	"github.com/evmarchive/archiver/src/utils/tool"

	"github.com/sirupsen/logrus"
)

// Writer persists one fetched contract into the archive tree.
// Whole-file overwrites only, so a torn run can always be repaired by
// fetching again.
type Writer struct {
	config *config.Config
	log    *logrus.Entry
	layout *archive.Layout
}

func NewWriter(config *config.Config) (self *Writer) {
	self = new(Writer)
	self.config = config
	self.log = logger.NewSublogger("writer")
	self.layout = archive.NewLayout(config.Archive.Dir)
	return
}

// Writes metadata, ABI and sources, then the checksum manifest over
// exactly those files. Returns the number of source files written.
func (self *Writer) SaveRecord(chainName string, record *SourceRecord) (numSources int, err error) {
	written := make(map[string][]byte, len(record.Sources)+2)
	written[archive.MetadataFile] = record.RawMetadata
	if len(record.Abi) > 0 {
		// Minified so the file checksum doesn't depend on how the source
		// formatted it
		written[archive.AbiFile] = tool.MinifyJSON(record.Abi)
	}

	for relPath, data := range record.Sources {
		cleaned, err := archive.CleanSourcePath(relPath)
		if err != nil {
			self.log.WithError(err).
				WithField("path", relPath).
				Warn("Skipping source file with unsafe path")
			continue
		}
		written[path.Join(archive.SourcesDir, cleaned)] = data
		numSources++
	}

	// Deterministic write order, metadata first
	paths := make([]string, 0, len(written))
	for relPath := range written {
		paths = append(paths, relPath)
	}
	sort.Strings(paths)

	for _, relPath := range paths {
		err = archive.WriteFile(self.layout.ContractFile(chainName, record.Address, relPath), written[relPath])
		if err != nil {
			return 0, err
		}
	}

	manifest := integrity.ComputeChecksumsForFiles(written)
	err = archive.SaveJSON(self.layout.ContractFile(chainName, record.Address, archive.ChecksumsFile), manifest)
	if err != nil {
		return 0, err
	}

	self.log.WithField("chain", chainName).
		WithField("address", record.Address).
		WithField("files", len(written)).
		Debug("Contract persisted")
	return
}

func (self *Writer) SaveVerification(chainName, address string, result *integrity.VerificationResult) (err error) {
	return archive.SaveJSON(self.layout.ContractFile(chainName, address, archive.VerificationFile), result)
}
