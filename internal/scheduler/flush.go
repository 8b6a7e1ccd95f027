package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
)

const flushJobTimeout = 30 * time.Second

// RegisterFlushJob schedules the persistence retry task: any event whose
// write-behind failed stays in its session's unsaved set until this job
// lands it. The in-memory session remains authoritative throughout.
func (s *Scheduler) RegisterFlushJob(manager *match.Manager, cronExpr string) error {
	if manager == nil {
		return fmt.Errorf("flush job requires a session manager")
	}

	jobName := "event_persistence_retry"
	jobLogger := log.With().
		Str("component", "event_flush_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	err := s.addJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		pending := 0
		for _, session := range manager.Sessions() {
			pending += session.UnsavedCount()
		}
		if pending == 0 {
			return
		}
		jobLogger.Info().Int("pending_events", pending).Msg("Retrying event persistence")
		manager.FlushAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("register flush job: %w", err)
	}
	return nil
}
