package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"captor/internal/calendar"
	"captor/internal/config"
	"captor/internal/logging"
	"captor/internal/queue"
	"captor/internal/scheduler"
	"captor/internal/store"
	"captor/internal/worker"
)

// Task names registered on the scheduler.
const (
	TaskDrain         = "drain"
	TaskTempSweep     = "temp-sweep"
	TaskCalendarRetry = "calendar-retry"
	TaskHousekeeping  = "housekeeping"
)

const housekeepingInterval = time.Hour

// Daemon coordinates the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	queue     *queue.Store
	processor *worker.Processor
	calendar  *calendar.Service
	scheduler *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, q *queue.Store, processor *worker.Processor, cal *calendar.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || q == nil || processor == nil {
		return nil, errors.New("daemon requires config, stores, and processor")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		queue:     q,
		processor: processor,
		calendar:  cal,
		scheduler: scheduler.New(logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, recovers orphaned queue items, and
// begins the periodic task schedule.
func (d *Daemon) Start(ctx context.Context) error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", d.lockPath)
	}

	if err := d.queue.CheckHealth(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("queue health check: %w", err)
	}

	if _, err := d.processor.RecoverStartup(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover orphaned items: %w", err)
	}

	if err := d.registerTasks(); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := d.scheduler.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	// Kick an immediate drain so submissions made while the daemon was down
	// don't wait a full poll interval.
	if err := d.scheduler.RunNow(TaskDrain, scheduler.PolicyKeep); err != nil {
		d.logger.Warn("initial drain failed to start", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("queue_db", d.queue.Path()),
		logging.String("lock_file", d.lockPath))
	return nil
}

func (d *Daemon) registerTasks() error {
	if err := d.scheduler.Register(TaskDrain, func(ctx context.Context) error {
		if _, err := d.processor.ReclaimStale(ctx); err != nil {
			d.logger.Warn("reclaim stale processing failed", logging.Error(err))
		}
		_, err := d.processor.DrainQueue(ctx)
		if errors.Is(err, worker.ErrDrainInProgress) {
			return nil
		}
		return err
	}); err != nil {
		return err
	}
	if err := d.scheduler.Register(TaskTempSweep, func(ctx context.Context) error {
		_, err := d.processor.SweepStaleTemp(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := d.scheduler.Register(TaskHousekeeping, func(ctx context.Context) error {
		return d.processor.Housekeep(ctx)
	}); err != nil {
		return err
	}

	intervals := map[string]time.Duration{
		TaskDrain:        time.Duration(d.cfg.Queue.PollInterval) * time.Second,
		TaskTempSweep:    time.Duration(d.cfg.Queue.TempSweepInterval) * time.Second,
		TaskHousekeeping: housekeepingInterval,
	}

	if d.calendar != nil && d.cfg.Calendar.Enabled {
		if err := d.scheduler.Register(TaskCalendarRetry, func(ctx context.Context) error {
			_, err := d.calendar.SweepFailedSyncs(ctx)
			return err
		}); err != nil {
			return err
		}
		intervals[TaskCalendarRetry] = time.Duration(d.cfg.Queue.CalendarRetryInterval) * time.Second
	}

	for name, interval := range intervals {
		if err := d.scheduler.RunPeriodic(name, interval, scheduler.PolicyKeep); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the schedule and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release instance lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Running reports whether Start has completed and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns runtime information for diagnostics.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		QueueDBPath:  d.queue.Path(),
		LockFilePath: d.lockPath,
	}
}
