// Package supervisor implements the Lifecycle Supervisor (spec.md
// §4.5): zombie sweep, handoff expiry, cache TTL sweep, interrupt
// timeout, telemetry rotation, and tempo recalculation, each as a
// singleton-mode gocron.DurationJob; the four sweeps are rescheduled
// whenever tempo changes. Grounded on internal/scheduler/scheduler.go's one-Scheduler,
// tagged-job, remove-then-readd shape, translated from cron
// expressions to plain durations since none of MASC's background
// concerns are wall-clock-scheduled.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/masc-dev/masc/internal/room"
)

const (
	tagZombie    = "zombie_sweep"
	tagHandoff   = "handoff_sweep"
	tagCache     = "cache_sweep"
	tagInterrupt = "interrupt_sweep"
	tagTelemetry = "telemetry_rotation"
	tagTempo     = "tempo_recalc"
)

// Config tunes the Supervisor's background intervals and the tempo
// adjustment formula of spec.md §4.5.
type Config struct {
	TempoBase             time.Duration
	TempoConcurrencyTarget int
	TelemetryRotation      time.Duration
}

// Supervisor wraps one gocron.Scheduler over one room.Store.
type Supervisor struct {
	cron   gocron.Scheduler
	store  *room.Store
	cfg    Config
	logger *zap.Logger
}

// New creates a Supervisor. Call Start to begin running its jobs.
func New(store *room.Store, cfg Config, logger *zap.Logger) (*Supervisor, error) {
	if cfg.TempoBase <= 0 {
		cfg.TempoBase = 30 * time.Second
	}
	if cfg.TempoConcurrencyTarget <= 0 {
		cfg.TempoConcurrencyTarget = 10
	}
	if cfg.TelemetryRotation <= 0 {
		cfg.TelemetryRotation = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Supervisor{
		cron:   s,
		store:  store,
		cfg:    cfg,
		logger: logger.Named("supervisor"),
	}, nil
}

// Start schedules every background job at the initial tempo and
// starts the underlying gocron scheduler.
func (s *Supervisor) Start(ctx context.Context) error {
	interval := s.currentInterval(ctx)

	if err := s.scheduleSweeps(interval); err != nil {
		return err
	}
	if err := s.scheduleTelemetryRotation(); err != nil {
		return err
	}
	if err := s.scheduleTempoRecalc(); err != nil {
		return err
	}

	s.logger.Info("supervisor started", zap.Duration("tempo", interval))
	s.cron.Start()
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for any in-flight
// sweep to finish.
func (s *Supervisor) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("supervisor shutdown error: %w", err)
	}
	s.logger.Info("supervisor stopped")
	return nil
}

// scheduleSweeps registers the four tempo-paced sweeps under interval.
func (s *Supervisor) scheduleSweeps(interval time.Duration) error {
	jobs := []struct {
		tag string
		run func(context.Context) (int, error)
	}{
		{tagZombie, s.store.SweepZombies},
		{tagHandoff, s.store.SweepHandoffs},
		{tagInterrupt, s.store.SweepInterrupts},
		{tagCache, s.sweepCache},
	}
	for _, j := range jobs {
		tag, run := j.tag, j.run
		_, err := s.cron.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				defer cancel()
				n, err := run(ctx)
				if err != nil {
					s.logger.Warn("sweep failed", zap.String("sweep", tag), zap.Error(err))
					return
				}
				if n > 0 {
					s.logger.Info("sweep completed", zap.String("sweep", tag), zap.Int("swept", n))
				}
			}),
			gocron.WithTags(tag),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("gocron.NewJob failed for %s: %w", tag, err)
		}
	}
	return nil
}

// sweepCache forces the lazy-TTL cache backend to purge every expired
// entry by listing with no tag filter, since CacheList already deletes
// expired entries as a side effect of the read. It has no way to
// report how many it purged, only how many remain live.
func (s *Supervisor) sweepCache(ctx context.Context) (int, error) {
	if _, err := s.store.CacheList(ctx, ""); err != nil {
		return 0, err
	}
	return 0, nil
}

func (s *Supervisor) scheduleTelemetryRotation() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.TelemetryRotation),
		gocron.NewTask(func() {
			rec := s.store.Telemetry()
			if rec == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			archive, err := rec.Rotate(ctx)
			if err != nil {
				s.logger.Warn("telemetry rotation failed", zap.Error(err))
				return
			}
			if archive != "" {
				s.logger.Info("telemetry rotated", zap.String("archive_key", archive))
			}
		}),
		gocron.WithTags(tagTelemetry),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("gocron.NewJob failed for %s: %w", tagTelemetry, err)
	}
	return nil
}

// scheduleTempoRecalc runs every tempo tick and reschedules the four
// sweeps (not itself or telemetry rotation) if load has pushed the
// interval outside its current value, mirroring
// Scheduler.UpdatePolicy's remove-then-readd pattern.
func (s *Supervisor) scheduleTempoRecalc() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.TempoBase),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			var prev time.Duration
			if info, err := s.store.RoomInfo(ctx); err == nil {
				prev = time.Duration(info.Tempo * float64(time.Second))
			}
			next := s.currentInterval(ctx)
			if next.Round(time.Millisecond) == prev.Round(time.Millisecond) {
				return
			}
			s.cron.RemoveByTags(tagZombie, tagHandoff, tagInterrupt, tagCache)
			if err := s.scheduleSweeps(next); err != nil {
				s.logger.Warn("tempo recalculation failed to reschedule sweeps", zap.Error(err))
				return
			}
			s.logger.Info("tempo recalculated", zap.Duration("interval", next))
		}),
		gocron.WithTags(tagTempo),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("gocron.NewJob failed for %s: %w", tagTempo, err)
	}
	return nil
}

// currentInterval implements spec.md §4.5's tempo formula:
// interval = clamp(base*(1+load_factor), 5s, 300s),
// load_factor = active_tasks / concurrency_target.
func (s *Supervisor) currentInterval(ctx context.Context) time.Duration {
	const (
		min = 5 * time.Second
		max = 300 * time.Second
	)

	active := 0
	if claimed, err := s.store.Tasks(ctx, room.TaskClaimed); err == nil {
		active += len(claimed)
	}
	if inProgress, err := s.store.Tasks(ctx, room.TaskInProgress); err == nil {
		active += len(inProgress)
	}

	loadFactor := float64(active) / float64(s.cfg.TempoConcurrencyTarget)
	interval := time.Duration(float64(s.cfg.TempoBase) * (1 + loadFactor))

	if interval < min {
		interval = min
	}
	if interval > max {
		interval = max
	}

	if _, err := s.store.SetTempo(ctx, interval.Seconds()); err != nil {
		s.logger.Warn("failed to persist recalculated tempo", zap.Error(err))
	}
	return interval
}
