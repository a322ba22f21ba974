package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is a named task run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler runs Jobs until its context is cancelled.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

// NewScheduler validates every schedule and registers the jobs.
func NewScheduler(jobs ...Job) (*Scheduler, error) {
	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler{cron: cron.New(), ctx: ctx, stop: stop}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.runJob(job) }); err != nil {
			stop()
			return nil, fmt.Errorf("failed to schedule %s (%q): %w", job.Name, job.Schedule, err)
		}
		log.WithFields(log.Fields{"job": job.Name, "schedule": job.Schedule}).Info("job scheduled")
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.stop()
	<-s.cron.Stop().Done()
	log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	entry := log.WithField("job", job.Name)
	if err := job.Run(s.ctx); err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.WithField("duration", time.Since(start)).Debug("job finished")
}

// FlagRefresher recomputes stored product flags.
type FlagRefresher interface {
	RefreshNewFlags() (int64, error)
}

// RefreshNewFlags keeps the stored es_nuevo flag in line with product
// creation dates.
func RefreshNewFlags(products FlagRefresher, schedule string) Job {
	return Job{
		Name:     "refresh-new-flags",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			changed, err := products.RefreshNewFlags()
			if err != nil {
				return err
			}
			if changed > 0 {
				log.WithField("changed", changed).Info("product new flags refreshed")
			}
			return nil
		},
	}
}

// TokenPurger drops expired revocation entries.
type TokenPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgeRevokedTokens removes blacklist rows whose tokens have expired anyway.
func PurgeRevokedTokens(blacklist TokenPurger, schedule string) Job {
	return Job{
		Name:     "purge-revoked-tokens",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			removed, err := blacklist.Purge(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				log.WithField("removed", removed).Info("expired revoked tokens purged")
			}
			return nil
		},
	}
}
