package task

import (
	"github.com/evmarchive/archiver/src/utils/config"
)

// Reads data from the input channel, transforms it and writes to the output channel.
// Transformation may emit any number of output items.
type Mapper[In any, Out any] struct {
	*Task

	input chan In

	// Called for each incoming data item
	onProcess func(In, chan Out) error

	Output chan Out
}

func NewMapper[In any, Out any](config *config.Config, name string) (self *Mapper[In, Out]) {
	self = new(Mapper[In, Out])

	self.Output = make(chan Out)

	self.Task = NewTask(config, name).
		WithSubtaskFunc(self.run)

	return
}

func (self *Mapper[In, Out]) WithInputChannel(v chan In) *Mapper[In, Out] {
	self.input = v
	return self
}

func (self *Mapper[In, Out]) WithProcessFunc(f func(In, chan Out) error) *Mapper[In, Out] {
	self.onProcess = f
	return self
}

func (self *Mapper[In, Out]) WithWorkerPool(maxWorkers, maxQueueSize int) *Mapper[In, Out] {
	self.Task = self.Task.WithWorkerPool(maxWorkers, maxQueueSize)
	return self
}

func (self *Mapper[In, Out]) run() (err error) {
	defer func() {
		// Wait for in-flight workers before closing the output, receivers use range
		if self.Workers != nil {
			self.Workers.StopWait()
		}
		close(self.Output)
	}()

	for in := range self.input {
		if self.Workers != nil {
			in := in
			self.SubmitToWorker(func() {
				err := self.onProcess(in, self.Output)
				if err != nil {
					self.Log.WithError(err).Error("Failed to map data")
				}
			})
			continue
		}

		err = self.onProcess(in, self.Output)
		if err != nil {
			self.Log.WithError(err).Error("Failed to map data")
			err = nil
		}
	}
	return nil
}
