package audit

import (
	"github.com/evmarchive/archiver/src/utils/config"
	monitor_auditor "github.com/evmarchive/archiver/src/utils/monitoring/auditor"
	"github.com/evmarchive/archiver/src/utils/task"
)

type Controller struct {
	*task.Task

	Auditor *Auditor
}

// Main class that orchestrates one audit pass over the archive
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "audit-controller")

	monitor := monitor_auditor.NewMonitor().
		WithMaxHistorySize(30)

	self.Auditor = NewAuditor(config).
		WithMonitor(monitor)

	self.Task = self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(self.Auditor.Task)

	return
}

// Blocks until the audit pass is done
func (self *Controller) WaitFinished() {
	<-self.Auditor.CtxRunning.Done()
}
