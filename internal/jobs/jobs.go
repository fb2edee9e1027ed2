// Package jobs runs the periodic housekeeping tasks: purging stale refresh
// sessions and expiring old system logs.
package jobs

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/metrics"
	"github.com/torvix/backend/internal/models"
	"github.com/torvix/backend/internal/services"
)

const (
	JobPurgeSessions = "purge_sessions"
	JobPurgeLogs     = "purge_system_logs"

	// Daily at 03:15 UTC.
	defaultSchedule = "15 3 * * *"
)

// Scheduler wraps a cron runner with the housekeeping jobs registered.
type Scheduler struct {
	cron             *cron.Cron
	db               *gorm.DB
	ledger           *services.SessionLedger
	sessionRetention time.Duration
	logRetention     time.Duration
	now              func() time.Time
}

func NewScheduler(db *gorm.DB, cfg *config.Config) (*Scheduler, error) {
	s := &Scheduler{
		cron:             cron.New(cron.WithLocation(time.UTC)),
		db:               db,
		ledger:           services.NewSessionLedger(db),
		sessionRetention: cfg.SessionRetention,
		logRetention:     cfg.LogRetention,
		now:              time.Now,
	}

	if _, err := s.cron.AddFunc(defaultSchedule, func() { s.run(JobPurgeSessions, s.PurgeSessions) }); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(defaultSchedule, func() { s.run(JobPurgeLogs, s.PurgeLogs) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("housekeeping jobs scheduled", "schedule", defaultSchedule)
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(name string, job func() (int64, error)) {
	start := time.Now()
	deleted, err := job()
	metrics.RecordJobRun(name, err == nil)
	if err != nil {
		slog.Error("housekeeping job failed", "job", name, "error", err)
		return
	}
	slog.Info("housekeeping job completed", "job", name, "deleted", deleted,
		"latency_ms", time.Since(start).Milliseconds())
}

// PurgeSessions deletes refresh sessions that expired or were revoked more
// than the retention window ago.
func (s *Scheduler) PurgeSessions() (int64, error) {
	return s.ledger.PurgeStale(s.now().Add(-s.sessionRetention))
}

// PurgeLogs deletes system logs older than the retention window.
func (s *Scheduler) PurgeLogs() (int64, error) {
	cutoff := s.now().Add(-s.logRetention).UTC()
	result := s.db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
