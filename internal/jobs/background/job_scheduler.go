package background

import (
	"fmt"
	"sync"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/config"
	"cellarledger/internal/jobs"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

var ErrUnknownJob = fmt.Errorf("unknown job: %w", common.ErrNotFound)

// JobScheduler runs the read-only background jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	alerts    *jobs.CommitmentAlertService
	archiver  *jobs.MovementArchiver
	cfg       config.JobsConfig
	logger    *zap.Logger
	jobJobs   map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler registers the at-risk check and, when archiver is not
// nil, the daily movement archive.
func NewJobScheduler(cfg config.JobsConfig, alerts *jobs.CommitmentAlertService, archiver *jobs.MovementArchiver, logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		alerts:    alerts,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
		jobJobs:   make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Int("jobs", len(js.jobJobs)))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	alertsJob, err := js.scheduler.NewJob(
		gocron.DurationJob(js.cfg.AtRiskInterval),
		gocron.NewTask(js.alerts.ScheduledAtRiskCheck),
		gocron.WithName("commitment-at-risk"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	js.jobJobs["commitment-at-risk"] = alertsJob

	if js.archiver != nil {
		archiveJob, err := js.scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(js.cfg.ArchiveHourUTC, 0, 0))),
			gocron.NewTask(js.archiver.ScheduledArchive),
			gocron.WithName("movement-archive"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
		js.jobJobs["movement-archive"] = archiveJob
	}

	js.logger.Info("registered background jobs", zap.Int("count", len(js.jobJobs)))
	return nil
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobJobs[name]
	js.mu.RUnlock()
	if !ok {
		return ErrUnknownJob
	}
	return job.RunNow()
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]any {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobsStatus := make(map[string]any, len(js.jobJobs))
	for name, job := range js.jobJobs {
		entry := map[string]any{"id": job.ID().String()}
		if next, err := job.NextRun(); err == nil {
			entry["next_run"] = next
		}
		if last, err := job.LastRun(); err == nil && !last.IsZero() {
			entry["last_run"] = last
		}
		jobsStatus[name] = entry
	}
	return map[string]any{
		"total_jobs": len(js.jobJobs),
		"jobs":       jobsStatus,
	}
}
