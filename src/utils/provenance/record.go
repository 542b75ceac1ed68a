package provenance

import (
	"sort"
	"time"
)

// Tools identifies the software that produced an archive entry
type Tools struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Record is the durable audit trail of one archived contract, stored next
// to the archived files as provenance.json. Field names are part of the
// archive format, consumers parse them.
//
// Invariant: FirstSeenAt <= LastUpdatedAt.
type Record struct {
	FirstSeenAt   time.Time `json:"firstSeenAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	Tools         Tools     `json:"tools"`
	SourcesUsed   []string  `json:"sourcesUsed"`
	FetchRunId    string    `json:"fetchRunId"`
	CommitHash    string    `json:"commitHash,omitempty"`
	Operator      string    `json:"operator"`
	Orphaned      bool      `json:"orphaned,omitempty"`
}

func (self *Record) HasSource(source string) bool {
	for _, used := range self.SourcesUsed {
		if used == source {
			return true
		}
	}
	return false
}

// AddSource unions the source into SourcesUsed, kept sorted so repeated
// runs serialize identically
func (self *Record) AddSource(source string) {
	if self.HasSource(source) {
		return
	}
	self.SourcesUsed = append(self.SourcesUsed, source)
	sort.Strings(self.SourcesUsed)
}

func (self *Record) Age() time.Duration {
	return time.Since(self.LastUpdatedAt)
}
