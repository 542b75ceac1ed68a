package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/evmarchive/archiver/src/utils/archive"
)

// ChecksumManifest maps every archived file to its sha256, persisted as
// checksums.json next to the files it covers. The manifest never lists
// itself. Paths are relative to the contract dir, forward slashes.
type ChecksumManifest struct {
	Files map[string]string `json:"files"`
}

type Mismatch struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Partition of a manifest check. Missing and Mismatched invalidate the
// contract, Extra is a warning only.
type ChecksumReport struct {
	Missing    []string   `json:"missing,omitempty"`
	Extra      []string   `json:"extra,omitempty"`
	Mismatched []Mismatch `json:"mismatched,omitempty"`
}

func (self *ChecksumReport) IsValid() bool {
	return len(self.Missing) == 0 && len(self.Mismatched) == 0
}

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (out string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	return HashBytes(data), nil
}

// Files the archiver writes about the archive rather than into it. They are
// excluded from manifests and never flagged as extra.
func isBookkeeping(relPath string) bool {
	switch relPath {
	case archive.ChecksumsFile, archive.ProvenanceFile, archive.VerificationFile:
		return true
	}
	return false
}

// ComputeChecksumsForFiles builds the manifest for content that is already
// in memory, keyed by relative path
func ComputeChecksumsForFiles(files map[string][]byte) (out *ChecksumManifest) {
	out = &ChecksumManifest{Files: make(map[string]string, len(files))}
	for relPath, data := range files {
		out.Files[filepath.ToSlash(relPath)] = HashBytes(data)
	}
	return
}

// ComputeFileChecksums hashes every file under dir. Deterministic: paths
// are relative, slash separated and hashing is content only.
func ComputeFileChecksums(dir string) (out *ChecksumManifest, err error) {
	out = &ChecksumManifest{Files: make(map[string]string)}

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if isBookkeeping(relPath) {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		out.Files[relPath] = hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return
}

// VerifyChecksums recomputes hashes under dir and partitions the outcome
// against the manifest
func VerifyChecksums(dir string, manifest *ChecksumManifest) (out *ChecksumReport, err error) {
	actual, err := ComputeFileChecksums(dir)
	if err != nil {
		return
	}

	out = new(ChecksumReport)

	for relPath, expected := range manifest.Files {
		got, ok := actual.Files[relPath]
		switch {
		case !ok:
			out.Missing = append(out.Missing, relPath)
		case got != expected:
			out.Mismatched = append(out.Mismatched, Mismatch{
				Path:     relPath,
				Expected: expected,
				Actual:   got,
			})
		}
	}

	for relPath := range actual.Files {
		if _, ok := manifest.Files[relPath]; !ok {
			out.Extra = append(out.Extra, relPath)
		}
	}

	// Deterministic report ordering
	sort.Strings(out.Missing)
	sort.Strings(out.Extra)
	sort.Slice(out.Mismatched, func(i, j int) bool {
		return out.Mismatched[i].Path < out.Mismatched[j].Path
	})
	return
}
