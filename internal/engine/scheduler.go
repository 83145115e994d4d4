package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"slayer/internal/logging"
)

// Scheduler drives periodic auto-save attempts. At most one timer loop runs
// at a time; Reconfigure replaces the running loop rather than stacking a
// second one. A failing attempt is logged and never stops future attempts.
type Scheduler struct {
	mu       sync.Mutex
	logger   *slog.Logger
	interval time.Duration
	fire     func(ctx context.Context)
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler builds a stopped scheduler that invokes fire on every tick.
func NewScheduler(interval time.Duration, fire func(ctx context.Context), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{logger: logger, interval: interval, fire: fire}
}

// Start launches the timer loop. Starting an already running scheduler is an
// error; use Reconfigure to change the interval of a live loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already running")
	}
	s.startLocked(ctx)
	return nil
}

func (s *Scheduler) startLocked(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	interval := s.interval
	go s.run(loopCtx, interval)
	s.logger.Info("auto-save scheduler started", logging.String("interval", interval.String()))
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.attempt(ctx)
		}
	}
}

func (s *Scheduler) attempt(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auto-save attempt panicked", logging.Args(logging.Any("panic", r))...)
		}
	}()
	s.fire(ctx)
}

// Reconfigure stops the current timer loop, if any, and starts a fresh one
// with the new interval. The previous loop is fully drained before the new
// one launches so ticks never interleave.
func (s *Scheduler) Reconfigure(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	running := s.cancel != nil
	if running {
		s.stopLocked()
	}
	s.interval = interval
	if running {
		s.startLocked(ctx)
	}
}

// Stop halts the timer loop and waits for any in-flight tick to finish.
// Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
	s.logger.Info("auto-save scheduler stopped")
}

// Running reports whether a timer loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
