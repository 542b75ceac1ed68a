package monitor_fetcher

import (
	"math"
	"net/http"
	"time"

	"github.com/evmarchive/archiver/src/utils/monitoring/report"
	"github.com/evmarchive/archiver/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report report.Report

	historySize int
	maxIdle     time.Duration

	collector *Collector

	// Archiving speed
	ContractsArchived *deque.Deque[uint64]
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:            &report.RunReport{},
		Transport:      &report.TransportReport{},
		Fetcher:        &report.FetcherReport{},
		RedisPublisher: &report.RedisPublisherReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(nil, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorContracts)
	return
}

func (self *Monitor) WithMaxHistorySize(maxHistorySize int) *Monitor {
	self.historySize = maxHistorySize

	self.ContractsArchived = deque.New[uint64](self.historySize)

	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())
	return self
}

// Max time between sweeps before the monitor reports unhealthy, 0 disables the check
func (self *Monitor) WithMaxIdle(maxIdle time.Duration) *Monitor {
	self.maxIdle = maxIdle
	return self
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure archiving speed
func (self *Monitor) monitorContracts() (err error) {
	loaded := self.Report.Fetcher.State.ContractsArchived.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.ContractsArchived.PushBack(loaded)
	if self.ContractsArchived.Len() > self.historySize {
		self.ContractsArchived.PopFront()
	}
	value := float64(self.ContractsArchived.Back()-self.ContractsArchived.Front()) / float64(self.ContractsArchived.Len())

	self.Report.Fetcher.State.AverageContractsArchivedPerMinute.Store(round(value))
	return
}

func (self *Monitor) IsOK() bool {
	if self.maxIdle <= 0 {
		// One shot runs are healthy as long as the process lives
		return true
	}

	now := time.Now().Unix()
	if now-self.Report.Run.State.StartTimestamp.Load() < 300 {
		return true
	}

	// Daemon is up long enough, the periodic sweep should have run by now
	last := self.Report.Fetcher.State.LastSweepTimestamp.Load()
	if last == 0 {
		last = self.Report.Run.State.StartTimestamp.Load()
	}
	return now-last < int64(self.maxIdle.Seconds())
}

func (self *Monitor) OnGetState(c *gin.Context) {
	// Fill data
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))

	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
