package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// ErrCycleRunning is returned when a synchronous run is requested while a
// cycle is already in flight.
var ErrCycleRunning = errors.New("a processing cycle is already running")

// CycleRunner is the orchestrator surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) (models.CycleResult, error)
}

// Scheduler triggers processing cycles on a fixed interval with a
// single-flight guard: a trigger that fires while a cycle is still running
// is skipped and logged, never queued.
type Scheduler struct {
	runner   CycleRunner
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID

	busy atomic.Bool

	mu         sync.RWMutex
	lastRun    time.Time
	lastResult *models.CycleResult
	lastErr    error
	runs       int
	skipped    int
}

func NewScheduler(runner CycleRunner, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Start registers the interval trigger and fires an immediate first cycle,
// so a fresh deployment serves data right away instead of after one interval.
func (s *Scheduler) Start() error {
	s.cron = cron.New()

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.runCycle("interval")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cycle: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("cycle_timeout", s.timeout))

	go s.runCycle("startup")
	return nil
}

// Stop halts the trigger. The returned context is done once any in-flight
// cycle has finished, for graceful shutdown.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// TriggerNow requests an extra cycle outside the interval. It reports
// whether the trigger was accepted; a cycle already in flight rejects it.
func (s *Scheduler) TriggerNow() bool {
	if s.busy.Load() {
		s.logger.Warn("Manual trigger rejected, cycle already running")
		return false
	}
	s.logger.Info("Manual cycle trigger accepted")
	go s.runCycle("manual")
	return true
}

// RunOnce executes a single cycle synchronously and returns its result.
// Used for diagnostic one-shot runs instead of the interval trigger.
func (s *Scheduler) RunOnce(ctx context.Context) (models.CycleResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return models.CycleResult{}, ErrCycleRunning
	}
	defer s.busy.Store(false)
	return s.execute(ctx)
}

func (s *Scheduler) runCycle(reason string) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn("Cycle still running, skipping trigger",
			zap.String("reason", reason))
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		return
	}
	defer s.busy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.execute(ctx); err != nil {
		s.logger.Error("Scheduled cycle failed",
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (s *Scheduler) execute(ctx context.Context) (models.CycleResult, error) {
	started := time.Now()
	result, err := s.runner.RunCycle(ctx)

	s.mu.Lock()
	s.lastRun = started
	s.lastResult = &result
	s.lastErr = err
	s.runs++
	s.mu.Unlock()

	return result, err
}

// LastResult returns the most recent cycle result, or nil before the first
// cycle completes.
func (s *Scheduler) LastResult() *models.CycleResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastResult == nil {
		return nil
	}
	r := *s.lastResult
	return &r
}

// Status reports scheduler state for the ops API.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nextRun time.Time
	if s.cron != nil {
		nextRun = s.cron.Entry(s.entryID).Next
	}

	status := map[string]interface{}{
		"cycle_running":    s.busy.Load(),
		"interval":         s.interval.String(),
		"last_run":         s.lastRun,
		"next_run":         nextRun,
		"runs":             s.runs,
		"skipped_triggers": s.skipped,
	}
	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}
	return status
}
