/**
 * @description
 * Maintenance jobs run by cmd/scheduler. Each job calls an internal endpoint
 * of the giving-service rather than touching storage directly, so only one
 * process ever writes the BoltDB file.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/config"
)

// MaintenanceClient is implemented by givingclient.Client.
type MaintenanceClient interface {
	CompletePastEvents(ctx context.Context) (int, error)
	ExpireStaleDonations(ctx context.Context) (int, error)
}

type Jobs struct {
	client  MaintenanceClient
	logger  *slog.Logger
	timeout time.Duration
}

func NewJobs(client MaintenanceClient, logger *slog.Logger) *Jobs {
	return &Jobs{client: client, logger: logger, timeout: time.Minute}
}

// CompletePastEvents closes events that have ended.
func (j *Jobs) CompletePastEvents() {
	j.logger.Info("starting event completion job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.client.CompletePastEvents(ctx)
	if err != nil {
		j.logger.Error("failed to complete past events", "error", err)
		return
	}
	j.logger.Info("event completion job finished", "completed", n)
}

// ExpireStaleDonations expires donations the donor never finished paying.
func (j *Jobs) ExpireStaleDonations() {
	j.logger.Info("starting donation expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.client.ExpireStaleDonations(ctx)
	if err != nil {
		j.logger.Error("failed to expire stale donations", "error", err)
		return
	}
	j.logger.Info("donation expiry job finished", "expired", n)
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return &Scheduler{cron: c, jobs: jobs, logger: logger, config: cfg}
}

// Start registers the jobs and starts the cron loop. A job with an invalid
// schedule is logged and skipped.
func (s *Scheduler) Start() int {
	scheduled := 0
	for _, job := range []struct {
		name     string
		schedule string
		run      func()
	}{
		{"event completion", s.config.EventSweepSchedule, s.jobs.CompletePastEvents},
		{"donation expiry", s.config.DonationSweepSchedule, s.jobs.ExpireStaleDonations},
	} {
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			s.logger.Error("failed to schedule job", "job", job.name, "schedule", job.schedule, "error", err)
			continue
		}
		scheduled++
		s.logger.Info("scheduled job", "job", job.name, "schedule", job.schedule)
	}
	s.cron.Start()
	return scheduled
}

// Stop returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
