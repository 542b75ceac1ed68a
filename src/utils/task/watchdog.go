package task

import (
	"time"

	"github.com/evmarchive/archiver/src/utils/config"
)

// How often the health check runs
const watchdogInterval = 30 * time.Second

// Restarts the watched task when the health check fails.
// The watched task is created from scratch upon each restart.
type Watchdog struct {
	*Task

	construct func() *Task
	isOK      func() bool
	watched   *Task
}

func NewWatchdog(config *config.Config) (self *Watchdog) {
	self = new(Watchdog)

	self.Task = NewTask(config, "watchdog").
		WithSubtaskFunc(self.run)

	return
}

func (self *Watchdog) WithTask(f func() *Task) *Watchdog {
	self.construct = f
	return self
}

func (self *Watchdog) WithIsOK(f func() bool) *Watchdog {
	self.isOK = f
	return self
}

func (self *Watchdog) run() (err error) {
	self.watched = self.construct()
	err = self.watched.Start()
	if err != nil {
		return
	}

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-self.StopChannel:
			self.watched.StopWait()
			return nil

		case <-ticker.C:
			if self.isOK == nil || self.isOK() {
				continue
			}

			self.Log.Error("Watched task is not healthy, restarting")
			self.watched.StopWait()

			self.watched = self.construct()
			err = self.watched.Start()
			if err != nil {
				return
			}
		}
	}
}
