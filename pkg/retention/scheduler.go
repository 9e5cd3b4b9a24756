// Package retention runs the administrative history purge on a cron
// schedule. Purging is the only delete path the round log has; rows
// inside the retention window are never touched.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cubematch/telemetry/pkg/db"
	"github.com/cubematch/telemetry/pkg/utils"
)

// Scheduler deletes history rows older than the configured number of
// days, every cron tick.
type Scheduler struct {
	logger  *zap.Logger
	history db.HistoryStore
	cron    *cron.Cron
	spec    string
	days    int
}

// New builds a scheduler from RETENTION_CRON (default: daily at 04:00)
// and RETENTION_DAYS (default 365).
func New(logger *zap.Logger, history db.HistoryStore) *Scheduler {
	return &Scheduler{
		logger:  logger.Named("retention"),
		history: history,
		spec:    utils.Env("RETENTION_CRON", "0 4 * * *"),
		days:    utils.EnvInt("RETENTION_DAYS", 365),
	}
}

// Start registers the purge job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := s.cron.AddFunc(s.spec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := s.Purge(rctx); err != nil {
			s.logger.Error("retention purge failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("retention purge scheduled",
		zap.String("cron", s.spec),
		zap.Int("days", s.days),
	)
	return nil
}

// Purge deletes everything older than the retention window. Exposed so
// an operator can trigger it outside the schedule.
func (s *Scheduler) Purge(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.days)
	if err := s.history.PurgeBefore(ctx, cutoff); err != nil {
		return err
	}
	s.logger.Info("retention purge completed", zap.Time("cutoff", cutoff))
	return nil
}

// Stop waits for a running purge to finish before returning.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
