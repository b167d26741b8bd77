package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultTick is the interval between runs of the registered tick jobs.
const DefaultTick = time.Second

// Job is a unit of periodic work. It must return promptly.
type Job func(ctx context.Context)

type namedJob struct {
	name string
	run  Job
}

// Scheduler drives process-wide periodic jobs. Reminder timing is handled by
// the reminder watchers, not here.
type Scheduler struct {
	cron   *cron.Cron
	tick   time.Duration
	logger zerolog.Logger

	mu   sync.RWMutex
	jobs []namedJob

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler evaluating cron expressions in loc.
func New(loc *time.Location, tick time.Duration, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		tick:   tick,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers a job run on every tick.
func (s *Scheduler) Every(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, namedJob{name: name, run: job})
}

// AddFunc registers a job on its own cron schedule, e.g. "0 8 * * *" or "@every 1m".
func (s *Scheduler) AddFunc(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(namedJob{name: name, run: job})
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// RunPending runs every tick job once, in registration order.
func (s *Scheduler) RunPending() {
	s.mu.RLock()
	jobs := append([]namedJob(nil), s.jobs...)
	s.mu.RUnlock()

	for _, job := range jobs {
		s.runJob(job)
	}
}

// Start registers the tick and starts the cron loop in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), s.RunPending); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Dur("tick", s.tick).Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runJob(job namedJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job", job.name).Interface("panic", r).Msg("scheduled job failed")
		}
	}()
	job.run(s.ctx)
}
