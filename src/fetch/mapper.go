package fetch

import (
	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/model"
	"github.com/evmarchive/archiver/src/utils/task"
)

// Maps archive results to notifications for the Publisher.
// Skipped and failed contracts don't produce notifications.
type Mapper struct {
	*task.Mapper[*Result, *model.ContractArchivedNotification]

	runId string
}

func NewMapper(config *config.Config) (self *Mapper) {
	self = new(Mapper)

	self.Mapper = task.NewMapper[*Result, *model.ContractArchivedNotification](config, "map-notification").
		WithProcessFunc(self.process)

	return
}

func (self *Mapper) WithInputChannel(v chan *Result) *Mapper {
	self.Mapper = self.Mapper.WithInputChannel(v)
	return self
}

func (self *Mapper) WithRunId(runId string) *Mapper {
	self.runId = runId
	return self
}

func (self *Mapper) process(result *Result, out chan *model.ContractArchivedNotification) (err error) {
	if result.Status != StatusArchived || result.Record == nil {
		return
	}

	notification := &model.ContractArchivedNotification{
		ChainId:      result.Record.ChainId,
		ChainName:    result.Ref.ChainName,
		Address:      result.Record.Address,
		MatchQuality: string(result.Record.MatchQuality),
		Source:       result.Record.SourceTag(),
		RunId:        self.runId,
	}

	select {
	case <-self.Ctx.Done():
	case out <- notification:
	}
	return
}
