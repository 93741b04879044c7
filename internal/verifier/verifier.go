// Package verifier polls the payment gateway for each payment a client is
// waiting on and settles it in the ledger once it is confirmed.
package verifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"go.uber.org/zap"
)

//go:generate mockery --name=Gateway --output=mocks --outpkg=mocks

type Gateway interface {
	AutoVerify(id string) bool
	Fail(id string) bool
}

type State string

const (
	StateWatching  State = "watching"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

const (
	DefaultInterval        = 3 * time.Second
	DefaultTimeout         = 10 * time.Minute
	DefaultCallbackTimeout = 10 * time.Second
	DefaultRetention       = 5 * time.Minute

	progressStep = 5
	progressCap  = 95
)

var (
	ErrAlreadyWatching = errors.New("payment is already being watched")
	ErrClosed          = errors.New("verifier is shut down")
)

// Callback settles a payment in the ledger. It must be idempotent: a
// confirmed payment's callback is retried on the next tick when it fails.
type Callback func(ctx context.Context) error

type Callbacks struct {
	OnConfirmed Callback
	OnFailed    Callback
}

type Config struct {
	Interval        time.Duration
	Timeout         time.Duration
	CallbackTimeout time.Duration
	// Retention is how long a finished watch stays visible to Progress.
	Retention time.Duration
}

type task struct {
	cancel context.CancelFunc
	ticks  int
	state  State
}

type Verifier struct {
	gw  Gateway
	cfg Config

	root     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	tasks    map[string]*task
	shutdown bool
}

func New(gw Gateway, cfg Config) *Verifier {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = DefaultCallbackTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	root, stop := context.WithCancel(context.Background())
	return &Verifier{gw: gw, cfg: cfg, root: root, stop: stop, tasks: make(map[string]*task)}
}

// Watch starts polling the gateway for id until it is confirmed, the
// timeout fails it, or the watch is cancelled.
func (v *Verifier) Watch(id string, cb Callbacks) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.shutdown {
		return ErrClosed
	}
	if t, ok := v.tasks[id]; ok && t.state == StateWatching {
		return ErrAlreadyWatching
	}
	ctx, cancel := context.WithCancel(v.root)
	t := &task{cancel: cancel, state: StateWatching}
	v.tasks[id] = t

	v.wg.Add(1)
	go v.run(ctx, id, t, cb)
	return nil
}

func (v *Verifier) run(ctx context.Context, id string, t *task, cb Callbacks) {
	defer v.wg.Done()
	defer t.cancel()

	ticker := time.NewTicker(v.cfg.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(v.cfg.Timeout)
	defer deadline.Stop()

	log := logger.Log.With(zap.String("payment_id", id))
	confirmed := false
	for {
		select {
		case <-ctx.Done():
			v.finish(id, t, StateCancelled)
			log.Debug("payment watch cancelled")
			return

		case <-deadline.C:
			if v.gw.Fail(id) {
				v.finish(id, t, StateFailed)
				log.Warn("payment timed out")
				if err := v.invoke(ctx, cb.OnFailed); err != nil {
					log.Error("payment failure handling failed", zap.Error(err))
				}
				return
			}
			v.finish(id, t, StateFailed)
			log.Error("payment confirmed but not settled before timeout", zap.Bool("confirmed", confirmed))
			return

		case <-ticker.C:
			v.advance(t)
			if !v.gw.AutoVerify(id) {
				continue
			}
			confirmed = true
			if err := v.invoke(ctx, cb.OnConfirmed); err != nil {
				log.Warn("payment settlement failed, retrying", zap.Error(err))
				continue
			}
			v.finish(id, t, StateConfirmed)
			log.Info("payment settled")
			return
		}
	}
}

// invoke runs cb detached from watch cancellation so a settlement that
// has started is allowed to commit.
func (v *Verifier) invoke(ctx context.Context, cb Callback) error {
	if cb == nil {
		return nil
	}
	cbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.cfg.CallbackTimeout)
	defer cancel()
	return cb(cbCtx)
}

func (v *Verifier) advance(t *task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t.ticks++
}

func (v *Verifier) finish(id string, t *task, s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.state == StateWatching {
		t.state = s
	}
	time.AfterFunc(v.cfg.Retention, func() { v.forget(id, t) })
}

// forget drops a finished task unless id has been watched again since.
func (v *Verifier) forget(id string, t *task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tasks[id] == t {
		delete(v.tasks, id)
	}
}

// Cancel stops watching id without touching the payment or the ledger.
func (v *Verifier) Cancel(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	t, ok := v.tasks[id]
	if !ok || t.state != StateWatching {
		return false
	}
	t.cancel()
	return true
}

// Progress is a cosmetic completion percentage for id: it grows by five
// per poll, holds at 95 until confirmation and reads 100 after.
func (v *Verifier) Progress(id string) (int, State, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	t, ok := v.tasks[id]
	if !ok {
		return 0, "", false
	}
	if t.state == StateConfirmed {
		return 100, t.state, true
	}
	return min(t.ticks*progressStep, progressCap), t.state, true
}

// Shutdown cancels every watch and waits for running callbacks to return.
func (v *Verifier) Shutdown(ctx context.Context) error {
	v.mu.Lock()
	v.shutdown = true
	v.mu.Unlock()
	v.stop()

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Log.Info("verifier stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
