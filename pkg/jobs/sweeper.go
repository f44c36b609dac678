package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepFunc performs one reconciliation pass.
type SweepFunc func(context.Context) error

// Sweeper runs a reconciliation task on a fixed interval in a background
// goroutine. The upload pipeline writes the file before the catalog row, so a
// crash in between can leave an orphaned file; the sweeper cleans those up.
type Sweeper struct {
	name     string
	interval time.Duration
	fn       SweepFunc
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSweeper builds a sweeper with the provided task.
func NewSweeper(name string, interval time.Duration, fn SweepFunc, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start begins the periodic run. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
	s.started = true
	s.logger.Sugar().Infow("sweeper started", "sweeper", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("sweeper stopped", "sweeper", s.name)
}

func (s *Sweeper) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.fn(s.ctx); err != nil {
				s.logger.Sugar().Errorw("sweep failed", "sweeper", s.name, "error", err)
			}
		}
	}
}
