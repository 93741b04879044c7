package accrual

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) CalculateDailyReturns(ctx context.Context) (*ledger.AccrualResult, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &ledger.AccrualResult{RunDate: "2024-03-10", Credited: 1}, nil
}

func TestSchedulerRunsAtStart(t *testing.T) {
	r := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(r, time.Hour)
	s.Start(ctx)

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestSchedulerTicksAndSurvivesErrors(t *testing.T) {
	r := &countingRunner{err: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(r, 5*time.Millisecond)
	s.Start(ctx)

	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()
}
