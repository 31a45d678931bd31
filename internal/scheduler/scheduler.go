package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/metrics"
)

// DefaultInterval between scheduled full-registry probes.
const DefaultInterval = 30 * time.Minute

// Runner is what the scheduler fires on every tick.
type Runner interface {
	RunOnce(ctx context.Context, trigger string) ([]domain.ProbeResult, error)
}

// Scheduler fires a full-registry probe every Interval until Stop is called.
// It does not coordinate with on-demand probes; both may run at once.
type Scheduler struct {
	Logger     *zap.Logger
	Runner     Runner
	Interval   time.Duration
	RunOnStart bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(logger *zap.Logger, runner Runner, interval time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		Logger:     logger,
		Runner:     runner,
		Interval:   interval,
		RunOnStart: runOnStart,
	}
}

// Start launches the timer loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.Logger.Info("scheduler_started", zap.Duration("interval", s.Interval))
}

// Stop halts the loop and waits for an in-flight tick to return. Safe to call
// more than once, and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
	s.Logger.Info("scheduler_stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	if s.RunOnStart {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick runs one probe; a failure or panic is logged and the timer keeps going.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.Logger.Error("scheduler_tick_panic", zap.String("panic", fmt.Sprint(rec)))
		}
	}()
	results, err := s.Runner.RunOnce(ctx, metrics.TriggerScheduled)
	if err != nil {
		s.Logger.Error("scheduler_tick_failed", zap.Int("checked", len(results)), zap.Error(err))
		return
	}
	s.Logger.Debug("scheduler_tick_done", zap.Int("checked", len(results)))
}
