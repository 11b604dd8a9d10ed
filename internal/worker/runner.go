package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"doordashboard/internal/amqp"
	"doordashboard/internal/log"
)

// EventConsumer delivers session-changed events until ctx is done.
type EventConsumer interface {
	ConsumeSessionChanged(ctx context.Context, handler func(context.Context, *amqp.SessionChangedMessage) error) error
}

// RunnerConfig holds configuration for the precompute runner
type RunnerConfig struct {
	// Interval between scheduled precomputes (default: 5m)
	Interval time.Duration
}

// DefaultRunnerConfig returns sensible defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Interval: 5 * time.Minute}
}

// Runner drives a Precomputer: once at start, on every interval tick and on
// every session event when a consumer is configured.
type Runner struct {
	precomputer *Precomputer
	consumer    EventConsumer
	config      RunnerConfig
	logger      *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRunner(p *Precomputer, consumer EventConsumer, config RunnerConfig, logger *log.Logger) *Runner {
	if config.Interval <= 0 {
		config.Interval = DefaultRunnerConfig().Interval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Runner{
		precomputer: p,
		consumer:    consumer,
		config:      config,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("precompute runner is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.logger.InfoContext(ctx, "Precompute runner started",
		"interval", r.config.Interval.String(),
		"events", r.consumer != nil)
	return nil
}

// Stop gracefully stops the runner and waits for the current pass.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Precompute runner stopped gracefully")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Precompute runner stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// IsRunning returns whether the runner is currently running
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) runLoop(parent context.Context) {
	defer close(r.doneCh)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.precomputer.Run(ctx, TriggerStartup); err != nil {
		r.logger.WarnContext(ctx, "Startup precompute failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(r.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := r.precomputer.Run(gctx, TriggerTick); err != nil {
					r.logger.WarnContext(gctx, "Scheduled precompute failed", log.FieldError, err)
				}
			}
		}
	})
	if r.consumer != nil {
		g.Go(func() error {
			err := r.consumer.ConsumeSessionChanged(gctx, r.precomputer.HandleSessionChanged)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.ErrorContext(ctx, "Precompute runner stopped with error", log.FieldError, err)
	}
}
