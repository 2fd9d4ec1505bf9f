package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds a single maintenance run.
const jobTimeout = 5 * time.Minute

// Maintenance is the storage the scheduled jobs act on.
type Maintenance interface {
	ExpireTiers(ctx context.Context, now time.Time) (int, error)
	PruneServerPosts(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron      *cron.Cron
	store     Maintenance
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler. A non-positive retention disables pruning.
func NewScheduler(store Maintenance, retention time.Duration, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		store:     store,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	s.logger.Info("Initializing scheduler...")
	if _, err := s.cron.AddFunc("@hourly", s.expireTiers); err != nil {
		return fmt.Errorf("could not set up tier expiry job: %w", err)
	}
	if s.retention > 0 {
		if _, err := s.cron.AddFunc("@daily", s.pruneServerPosts); err != nil {
			return fmt.Errorf("could not set up pruning job: %w", err)
		}
	}
	s.cron.Start()
	s.logger.Info("Maintenance jobs scheduled", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped.")
}

func (s *Scheduler) expireTiers() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.store.ExpireTiers(ctx, s.now())
	if err != nil {
		s.logger.Error("Tier expiry failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Downgraded expired tiers", zap.Int("servers", n))
	}
}

func (s *Scheduler) pruneServerPosts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.store.PruneServerPosts(ctx, s.now().Add(-s.retention)); err != nil {
		s.logger.Error("Server post pruning failed", zap.Error(err))
	}
}
