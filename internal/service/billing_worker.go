package service

import (
	"context"
	"sync"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/logger"
	"go.uber.org/fx"
)

const defaultRunnerInterval = time.Hour

// BillingWorker runs the billing runner on a fixed interval, starting with an immediate run
type BillingWorker struct {
	runner   BillingRunner
	interval time.Duration
	clock    Clock
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBillingWorker(params ServiceParams, runner BillingRunner) *BillingWorker {
	interval := params.Config.Billing.RunnerInterval
	if interval <= 0 {
		interval = defaultRunnerInterval
	}
	clock := params.Clock
	if clock == nil {
		clock = SystemClock
	}

	return &BillingWorker{
		runner:   runner,
		interval: interval,
		clock:    clock,
		logger:   params.Logger,
	}
}

// Start launches the ticker loop. Calling Start on a running worker is a no-op.
func (w *BillingWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Infow("starting billing worker", "interval", w.interval)
	go w.loop(ctx, w.done)
}

// Stop cancels the loop and waits for an in-flight run to return, or for ctx to expire
func (w *BillingWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}

	w.logger.Info("stopping billing worker")
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterWithLifecycle ties the worker to the fx application lifecycle
func (w *BillingWorker) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: w.Stop,
	})
}

func (w *BillingWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *BillingWorker) runOnce(ctx context.Context) {
	resp, err := w.runner.RunOnce(ctx, w.clock())
	if err != nil {
		w.logger.Errorw("billing run failed", "error", err)
		return
	}
	if resp.Failed > 0 {
		w.logger.Warnw("billing run finished with failures",
			"billed", resp.Billed,
			"failed", resp.Failed,
		)
	}
}
