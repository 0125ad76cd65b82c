// Package worker runs the background loops that keep device links fresh:
// a periodic data sync pass and a token refresh pass.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vibehealth/healthsync/internal/domain/device"
	"github.com/vibehealth/healthsync/internal/pkg/logger"
	"github.com/vibehealth/healthsync/internal/pkg/metrics"
)

// Config controls the scheduler cadences and windows.
type Config struct {
	// Cron expressions, standard five-field format
	SyncSchedule    string
	RefreshSchedule string
	// Links not synced within SyncInterval are due on the next pass
	SyncInterval time.Duration
	// Tokens expiring within RefreshLookahead get refreshed early
	RefreshLookahead time.Duration
}

func (c *Config) applyDefaults() {
	if c.SyncSchedule == "" {
		c.SyncSchedule = "0 * * * *"
	}
	if c.RefreshSchedule == "" {
		c.RefreshSchedule = "*/30 * * * *"
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Hour
	}
	if c.RefreshLookahead <= 0 {
		c.RefreshLookahead = time.Hour
	}
}

// Scheduler drives periodic sync and token refresh over all eligible links.
// One failing link never stops a pass.
type Scheduler struct {
	repo    device.Repository
	service device.Service
	logger  *logger.Logger
	cfg     Config
	cron    *cron.Cron
	now     func() time.Time
}

// New creates a scheduler; call Start to begin the loops.
func New(repo device.Repository, service device.Service, log *logger.Logger, cfg Config) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		repo:    repo,
		service: service,
		logger:  log,
		cfg:     cfg,
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Start registers the cron entries and launches the loops.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.SyncSchedule, func() {
		s.runGuarded(ctx, "sync", func() (int, int) { return s.RunSyncPass(ctx) })
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RefreshSchedule, func() {
		s.runGuarded(ctx, "refresh", func() (int, int) { return s.RunRefreshPass(ctx) })
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithFields(map[string]interface{}{
		"sync_schedule":    s.cfg.SyncSchedule,
		"refresh_schedule": s.cfg.RefreshSchedule,
	}).Info("sync scheduler started")
	return nil
}

// Stop halts the cron loops and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("sync scheduler stopped")
}

// runGuarded keeps a panicking pass from killing the cron goroutine.
func (s *Scheduler) runGuarded(ctx context.Context, pass string, run func() (int, int)) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSchedulerPass(pass, "panic")
			s.logger.WithFields(map[string]interface{}{
				"pass":  pass,
				"panic": r,
			}).Error("scheduler pass panicked")
		}
	}()
	run()
}

// RunSyncPass syncs every link that has not synced within SyncInterval.
// Returns the success and failure tallies.
func (s *Scheduler) RunSyncPass(ctx context.Context) (succeeded, failed int) {
	now := s.now()
	links, err := s.repo.ListNeedingSync(ctx, now.Add(-s.cfg.SyncInterval))
	if err != nil {
		metrics.RecordSchedulerPass("sync", "failure")
		s.logger.WithError(err).Error("failed to list links needing sync")
		return 0, 0
	}

	for _, link := range links {
		result, err := s.service.SyncLink(ctx, link.ID)
		if err != nil || result.Status != device.SyncSuccess {
			failed++
			if err != nil {
				s.logger.WithError(err).WithFields(map[string]interface{}{
					"link_id": link.ID.String(),
					"vendor":  link.Vendor,
				}).Warn("scheduled sync failed")
			}
			continue
		}
		succeeded++
	}

	metrics.RecordSchedulerPass("sync", "success")
	s.logger.WithFields(map[string]interface{}{
		"eligible":  len(links),
		"succeeded": succeeded,
		"failed":    failed,
	}).Info("sync pass completed")
	return succeeded, failed
}

// RunRefreshPass refreshes tokens expiring within RefreshLookahead.
func (s *Scheduler) RunRefreshPass(ctx context.Context) (succeeded, failed int) {
	now := s.now()
	links, err := s.repo.ListNeedingTokenRefresh(ctx, now.Add(s.cfg.RefreshLookahead))
	if err != nil {
		metrics.RecordSchedulerPass("refresh", "failure")
		s.logger.WithError(err).Error("failed to list links needing token refresh")
		return 0, 0
	}

	for _, link := range links {
		if err := s.service.RefreshToken(ctx, link.ID); err != nil {
			failed++
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"link_id": link.ID.String(),
				"vendor":  link.Vendor,
			}).Warn("scheduled token refresh failed")
			continue
		}
		succeeded++
	}

	metrics.RecordSchedulerPass("refresh", "success")
	s.logger.WithFields(map[string]interface{}{
		"eligible":  len(links),
		"succeeded": succeeded,
		"failed":    failed,
	}).Info("token refresh pass completed")
	return succeeded, failed
}
