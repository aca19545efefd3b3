// Package scheduler drives the periodic queue sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vibra-server/internal/service"
)

// QueueProcessor is the pipeline operation the scheduler invokes.
type QueueProcessor interface {
	ProcessPending(ctx context.Context, limit int) (*service.ProcessResult, error)
}

// Status is a snapshot of the scheduler state for the admin API.
type Status struct {
	Enabled         bool                   `json:"enabled"`
	Paused          bool                   `json:"paused"`
	IntervalSeconds int                    `json:"interval_seconds"`
	BatchSize       int                    `json:"batch_size"`
	LastRunAt       *time.Time             `json:"last_run_at,omitempty"`
	LastError       string                 `json:"last_error,omitempty"`
	LastResult      *service.ProcessResult `json:"last_result,omitempty"`
}

// Scheduler invokes ProcessPending on a fixed interval until its context
// is cancelled.
type Scheduler struct {
	processor QueueProcessor
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	mu         sync.Mutex
	paused     bool
	lastRunAt  *time.Time
	lastErr    string
	lastResult *service.ProcessResult
}

// New creates a Scheduler.
func New(processor QueueProcessor, interval time.Duration, batchSize int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		processor: processor,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.Named("scheduler"),
	}
}

// Run blocks, sweeping the queue every interval, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if s.isPaused() {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

// RunNow triggers an immediate sweep regardless of the paused state.
func (s *Scheduler) RunNow(ctx context.Context) (*service.ProcessResult, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (*service.ProcessResult, error) {
	result, err := s.processor.ProcessPending(ctx, s.batchSize)

	s.mu.Lock()
	now := time.Now()
	s.lastRunAt = &now
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
		s.lastResult = result
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Queue sweep failed", zap.Error(err))
		return nil, err
	}
	if result.Processed > 0 {
		s.logger.Info("Queue sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// Pause suspends periodic sweeps. RunNow still works while paused.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.logger.Info("Scheduler paused")
}

// Resume re-enables periodic sweeps.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.logger.Info("Scheduler resumed")
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Status returns a snapshot for the admin API.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Enabled:         true,
		Paused:          s.paused,
		IntervalSeconds: int(s.interval.Seconds()),
		BatchSize:       s.batchSize,
		LastRunAt:       s.lastRunAt,
		LastError:       s.lastErr,
		LastResult:      s.lastResult,
	}
}
