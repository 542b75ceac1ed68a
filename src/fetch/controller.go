package fetch

import (
	"context"

	"github.com/evmarchive/archiver/src/utils/config"
	"github.com/evmarchive/archiver/src/utils/explorer"
	"github.com/evmarchive/archiver/src/utils/model"
	"github.com/evmarchive/archiver/src/utils/monitoring"
	monitor_fetcher "github.com/evmarchive/archiver/src/utils/monitoring/fetcher"
	"github.com/evmarchive/archiver/src/utils/publisher"
	"github.com/evmarchive/archiver/src/utils/sourcify"
	"github.com/evmarchive/archiver/src/utils/task"
	"github.com/evmarchive/archiver/src/utils/transport"

	"gorm.io/gorm"
)

type Controller struct {
	*task.Task

	// Set in one shot mode, the daemon rebuilds its archiver on restart
	Archiver *Archiver

	// CtxRunning of every terminal pipeline stage
	finished []context.Context
}

// Main class that orchestrates one fetch run.
// The pipeline drains and finishes on its own once every contract got its
// terminal result, the monitor keeps running until the caller stops it.
func NewController(config *config.Config, refs []ContractRef) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "fetch-controller")

	monitor := monitor_fetcher.NewMonitor().
		WithMaxHistorySize(30)

	cache, err := transport.NewStore(config)
	if err != nil {
		return
	}
	if config.Fetcher.DryRun {
		// Dry run leaves no trace, not even cached responses
		cache = transport.NewNopStore()
	}

	client := transport.NewClient(config).
		WithStore(cache).
		WithMonitor(monitor).
		WithForceRefresh(config.Fetcher.Force)

	scheduler := NewScheduler(config, refs).
		WithMonitor(monitor)

	self.Archiver = NewArchiver(config).
		WithPrimary(sourcify.NewClient(config).WithClient(client)).
		WithFallback(explorer.NewClient(config).WithClient(client)).
		WithMonitor(monitor).
		WithInputChannel(scheduler.Output)

	self.Task = self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(scheduler.Task).
		WithSubtask(self.Archiver.Task)

	self.finished = append(self.finished, self.Archiver.CtxRunning)

	// Filesystem persistence happens in the archiver, the index and the
	// notifications are optional consumers of its results
	persisting := config.Database.Enabled && !config.Fetcher.DryRun
	notifying := config.Redis.Enabled && !config.Fetcher.DryRun

	if persisting {
		var db *gorm.DB
		db, err = model.NewConnection(self.Ctx, config, "fetcher")
		if err != nil {
			return
		}

		store := NewStore(config).
			WithInputChannel(self.Archiver.NewOutputChannel()).
			WithMonitor(monitor).
			WithDB(db).
			WithSummary(self.Archiver.Summary)

		self.Task = self.Task.WithSubtask(store.Task)
		self.finished = append(self.finished, store.CtxRunning)
	}

	if notifying {
		mapper := NewMapper(config).
			WithInputChannel(self.Archiver.NewOutputChannel()).
			WithRunId(self.Archiver.RunId())

		redisPublisher := publisher.NewRedisPublisher[*model.ContractArchivedNotification](config, "redis-publisher").
			WithChannelName(config.Fetcher.PublisherRedisChannelName).
			WithInputChannel(mapper.Output).
			WithMonitor(monitor)

		self.Task = self.Task.
			WithSubtask(mapper.Task).
			WithSubtask(redisPublisher.Task)
		self.finished = append(self.finished, redisPublisher.CtxRunning)
	}

	return
}

// Main class that orchestrates daemon mode: the monitoring server plus the
// fetch pipeline under a watchdog, swept periodically. The pipeline is
// rebuilt from scratch whenever the monitor reports it stuck.
func NewDaemon(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "daemon-controller")

	monitor := monitor_fetcher.NewMonitor().
		WithMaxHistorySize(30).
		WithMaxIdle(2 * config.Fetcher.SweepInterval)

	server := monitoring.NewServer(config).
		WithMonitor(monitor)

	watched := func() *task.Task {
		cache, err := transport.NewStore(config)
		if err != nil {
			panic(err)
		}

		client := transport.NewClient(config).
			WithStore(cache).
			WithMonitor(monitor).
			WithForceRefresh(config.Fetcher.Force)

		scheduler := NewScheduler(config, nil).
			WithMonitor(monitor).
			WithPeriodicSweep(cache)

		archiver := NewArchiver(config).
			WithPrimary(sourcify.NewClient(config).WithClient(client)).
			WithFallback(explorer.NewClient(config).WithClient(client)).
			WithMonitor(monitor).
			WithInputChannel(scheduler.Output)

		watched := task.NewTask(config, "watched-fetcher").
			WithSubtask(scheduler.Task).
			WithSubtask(archiver.Task)

		if config.Database.Enabled {
			db, err := model.NewConnection(self.Ctx, config, "fetcher")
			if err != nil {
				panic(err)
			}

			store := NewStore(config).
				WithInputChannel(archiver.NewOutputChannel()).
				WithMonitor(monitor).
				WithDB(db).
				WithSummary(archiver.Summary)

			watched = watched.WithSubtask(store.Task)
		}

		if config.Redis.Enabled {
			mapper := NewMapper(config).
				WithInputChannel(archiver.NewOutputChannel()).
				WithRunId(archiver.RunId())

			redisPublisher := publisher.NewRedisPublisher[*model.ContractArchivedNotification](config, "redis-publisher").
				WithChannelName(config.Fetcher.PublisherRedisChannelName).
				WithInputChannel(mapper.Output).
				WithMonitor(monitor)

			watched = watched.
				WithSubtask(mapper.Task).
				WithSubtask(redisPublisher.Task)
		}

		return watched
	}

	watchdog := task.NewWatchdog(config).
		WithTask(watched).
		WithIsOK(func() bool {
			isOK := monitor.IsOK()
			if !isOK {
				monitor.Report.Run.Errors.NumWatchdogRestarts.Inc()
			}
			return isOK
		})

	self.Task = self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(server.Task).
		WithSubtask(watchdog.Task)

	return
}

// Blocks until every pipeline stage drained on its own. Should be raced
// against the shutdown signal, the caller still owns the final StopWait.
func (self *Controller) WaitFinished() {
	for _, ctx := range self.finished {
		<-ctx.Done()
	}
}
