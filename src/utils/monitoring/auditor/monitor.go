package monitor_auditor

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

// Stores and computes audit counters
type Monitor struct {
	*task.Task

	Report report.Report

	historySize int

	collector *Collector

	// Audit speed
	ContractsAudited *deque.Deque[uint64]
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:       &report.RunReport{},
		Transport: &report.TransportReport{},
		Auditor:   &report.AuditorReport{},
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

	self.ContractsAudited = deque.New[uint64](self.historySize)

	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())
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

// Measure audit speed
func (self *Monitor) monitorContracts() (err error) {
	loaded := self.Report.Auditor.State.ContractsAudited.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.ContractsAudited.PushBack(loaded)
	if self.ContractsAudited.Len() > self.historySize {
		self.ContractsAudited.PopFront()
	}
	value := float64(self.ContractsAudited.Back()-self.ContractsAudited.Front()) / float64(self.ContractsAudited.Len())

	self.Report.Auditor.State.AverageContractsAuditedPerMinute.Store(round(value))
	return
}

func (self *Monitor) IsOK() bool {
	// Audits are one shot runs, healthy as long as the process lives
	return true
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
