package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunnerConfig holds configuration for the periodic aggregation runner.
type RunnerConfig struct {
	Interval  time.Duration // Time between aggregation passes
	BatchSize int           // Maximum events drained per pass
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:  5 * time.Second,
		BatchSize: 100,
	}
}

// Runner invokes the aggregator on a fixed cadence. It is the
// in-process stand-in for an external scheduler; RunBatch stays safe to
// call from elsewhere concurrently.
type Runner struct {
	config     RunnerConfig
	aggregator *Aggregator
	log        *zap.Logger
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	mu         sync.Mutex
}

// NewRunner creates a periodic runner around the aggregator.
func NewRunner(aggregator *Aggregator, config RunnerConfig, log *zap.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		config:     config,
		aggregator: aggregator,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins periodic aggregation.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}

	r.log.Info("starting analytics runner",
		zap.Duration("interval", r.config.Interval),
		zap.Int("batch_size", r.config.BatchSize))

	r.wg.Add(1)
	go r.loop()

	r.started = true
	return nil
}

// Stop shuts the runner down, waiting for an in-flight pass to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return fmt.Errorf("runner not started")
	}

	r.log.Info("stopping analytics runner")
	r.cancel()
	r.wg.Wait()

	r.started = false
	return nil
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.aggregator.RunBatch(r.ctx, r.config.BatchSize); err != nil {
				r.log.Error("aggregation batch failed", zap.Error(err))
			}
		case <-r.ctx.Done():
			// Final drain so a clean shutdown loses as little as possible.
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := r.aggregator.RunBatch(drainCtx, r.config.BatchSize); err != nil {
				r.log.Warn("final drain failed", zap.Error(err))
			}
			cancel()
			r.log.Info("analytics runner stopped")
			return
		}
	}
}
