// Package scheduler runs the periodic maintenance jobs of the API.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Sweeper flags students that have gone quiet.
type Sweeper interface {
	Sweep(ctx context.Context, staleAfter time.Duration) (int, error)
}

// Config controls the attention sweep. An empty cron expression disables it.
type Config struct {
	AttentionCron  string
	StaleAfter     time.Duration
	SweepTimeout   time.Duration
	ScheduleInZone *time.Location
}

// Scheduler owns the cron runner.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	config    Config
	logger    zerolog.Logger
}

// New creates a scheduler. Jobs are registered by Start.
func New(sweeper Sweeper, config Config, logger zerolog.Logger) *Scheduler {
	zone := config.ScheduleInZone
	if zone == nil {
		zone = time.UTC
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 5 * time.Minute
	}

	runner := gocron.NewScheduler(zone)
	runner.SingletonModeAll()
	return &Scheduler{
		scheduler: runner,
		sweeper:   sweeper,
		config:    config,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Enabled reports whether any job is configured.
func (s *Scheduler) Enabled() bool {
	return strings.TrimSpace(s.config.AttentionCron) != "" && s.sweeper != nil
}

// Start registers the configured jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.logger.Info().Msg("attention sweep disabled")
		return nil
	}

	if _, err := s.scheduler.Cron(s.config.AttentionCron).Do(s.runSweep); err != nil {
		return fmt.Errorf("schedule attention sweep: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info().Str("cron", s.config.AttentionCron).Dur("stale_after", s.config.StaleAfter).Msg("attention sweep scheduled")
	return nil
}

// Stop terminates the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

// RunNow executes the sweep once, outside the schedule.
func (s *Scheduler) RunNow() {
	s.runSweep()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SweepTimeout)
	defer cancel()

	started := time.Now()
	flagged, err := s.sweeper.Sweep(ctx, s.config.StaleAfter)
	if err != nil {
		s.logger.Error().Err(err).Msg("attention sweep failed")
		return
	}
	s.logger.Info().Int("flagged", flagged).Dur("elapsed", time.Since(started)).Msg("attention sweep run")
}
