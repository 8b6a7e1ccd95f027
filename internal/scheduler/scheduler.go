package scheduler

import (
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the server's recurring jobs. It owns a gocron scheduler
// whose jobs recover from panics instead of taking the process down.
type Scheduler struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error
}

// New builds a stopped scheduler. Register jobs, then call Start.
func New() (*Scheduler, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Scheduler{scheduler: sched}, nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	log.Info().Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop shuts down the scheduler and prevents new job runs. Safe to call
// more than once.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// addJob registers a cron-based job with per-run debug logging.
func (s *Scheduler) addJob(name, cronExpr string, task func()) error {
	jobLogger := log.With().Str("job_name", name).Str("cron", cronExpr).Logger()

	wrappedTask := func() {
		jobLogger.Debug().Msg("Scheduler job started")
		task()
		jobLogger.Debug().Msg("Scheduler job completed")
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrappedTask),
		gocron.WithName(name),
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return err
	}
	jobLogger.Info().Msg("Scheduler job registered")
	return nil
}
