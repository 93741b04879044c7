package accrual

import (
	"context"
	"sync"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"go.uber.org/zap"
)

const DefaultInterval = time.Hour

type Runner interface {
	CalculateDailyReturns(ctx context.Context) (*ledger.AccrualResult, error)
}

// Scheduler runs the daily accrual at start and on every tick after. The
// ledger credits each investment at most once per calendar day, so ticks
// more frequent than daily are harmless.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	wg       sync.WaitGroup
}

func NewScheduler(r Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{runner: r, interval: interval}
}

// Start returns immediately; the loop stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Log.Info("accrual scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.runner.CalculateDailyReturns(ctx)
	if err != nil {
		logger.Log.Error("scheduled accrual failed", zap.Error(err))
		return
	}
	if res.Credited > 0 {
		logger.Log.Info("scheduled accrual credited returns",
			zap.String("run_date", res.RunDate),
			zap.Int("credited", res.Credited),
		)
	}
}

// Wait blocks until the loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
