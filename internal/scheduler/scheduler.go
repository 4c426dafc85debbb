package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"captor/internal/logging"
)

// Task is a unit of background work. Tasks receive the scheduler's run
// context and should return promptly once it is canceled.
type Task func(ctx context.Context) error

// Policy decides what happens when a task with the same name is already
// scheduled or running.
type Policy int

const (
	// PolicyKeep leaves the existing run or schedule in place.
	PolicyKeep Policy = iota
	// PolicyReplace cancels the existing run or schedule and starts fresh.
	PolicyReplace
)

// Scheduler runs named tasks immediately or on an interval. Task names are
// unique: scheduling the same name twice applies the given policy.
type Scheduler struct {
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	tasks     map[string]Task
	oneShots  map[string]*oneShotRun
	periodics map[string]*periodicState
}

type oneShotRun struct {
	cancel context.CancelFunc
}

type periodicState struct {
	interval time.Duration
	cancel   context.CancelFunc
}

// New builds a scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		tasks:     make(map[string]Task),
		oneShots:  make(map[string]*oneShotRun),
		periodics: make(map[string]*periodicState),
	}
}

// Register makes a task available under a name. Registering an existing
// name overwrites the task body but not any schedule already attached to it.
func (s *Scheduler) Register(name string, task Task) error {
	if name == "" {
		return errors.New("task name is empty")
	}
	if task == nil {
		return errors.New("task is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = task
	return nil
}

// Start begins background execution. Periodic schedules registered before
// Start begin ticking now.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for name, state := range s.periodics {
		s.launchPeriodicLocked(name, state)
	}
	return nil
}

// Stop cancels every running task and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.oneShots = make(map[string]*oneShotRun)
	for _, state := range s.periodics {
		state.cancel = nil
	}
	s.mu.Unlock()
}

// RunNow executes a registered task once, in the background. When a run with
// the same name is still in flight, PolicyKeep leaves it alone and
// PolicyReplace cancels it first.
func (s *Scheduler) RunNow(name string, policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return errors.New("scheduler not running")
	}
	task, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("task %q not registered", name)
	}

	if existing, inFlight := s.oneShots[name]; inFlight {
		if policy == PolicyKeep {
			return nil
		}
		existing.cancel()
	}

	taskCtx, cancel := context.WithCancel(s.runCtx)
	run := &oneShotRun{cancel: cancel}
	s.oneShots[name] = run

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.oneShots[name] == run {
				delete(s.oneShots, name)
			}
			s.mu.Unlock()
			cancel()
		}()
		s.runTask(taskCtx, name, task)
	}()
	return nil
}

// RunPeriodic runs a registered task on an interval. An existing schedule
// for the same name is kept or replaced per the policy.
func (s *Scheduler) RunPeriodic(name string, interval time.Duration, policy Policy) error {
	if interval <= 0 {
		return fmt.Errorf("interval for task %q must be positive", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; !ok {
		return fmt.Errorf("task %q not registered", name)
	}

	if existing, ok := s.periodics[name]; ok {
		if policy == PolicyKeep {
			return nil
		}
		if existing.cancel != nil {
			existing.cancel()
		}
	}

	state := &periodicState{interval: interval}
	s.periodics[name] = state
	if s.running {
		s.launchPeriodicLocked(name, state)
	}
	return nil
}

// launchPeriodicLocked starts the ticking goroutine. Callers hold s.mu.
func (s *Scheduler) launchPeriodicLocked(name string, state *periodicState) {
	loopCtx, cancel := context.WithCancel(s.runCtx)
	state.cancel = cancel
	task := s.tasks[name]

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(state.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.runTask(loopCtx, name, task)
			}
		}
	}()
}

func (s *Scheduler) runTask(ctx context.Context, name string, task Task) {
	if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("task failed",
			logging.String("task", name),
			logging.Error(err))
	}
}
