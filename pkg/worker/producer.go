package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jzx17/matrixpipe/internal/logging"
	"github.com/jzx17/matrixpipe/internal/metrics"
	"github.com/jzx17/matrixpipe/pkg/channel"
	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/jzx17/matrixpipe/pkg/shutdown"
	"github.com/jzx17/matrixpipe/pkg/types"
	"go.uber.org/zap"
)

// ProducerConfig defines configuration for the producer
type ProducerConfig struct {
	// Size is N for the generated N x N matrices
	Size int

	// Interval is the pause after each queued pair
	Interval time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// DefaultProducerConfig returns default configuration for n x n matrices
func DefaultProducerConfig(n int) *ProducerConfig {
	return &ProducerConfig{
		Size:     n,
		Interval: time.Second,
		Clock:    types.NewRealClock(),
	}
}

// Producer generates matrix pairs and queues them until the shutdown signal is raised,
// then queues End exactly once
type Producer struct {
	lifecycle

	config *ProducerConfig
	gen    matrix.Generator
	ch     *channel.Channel
	sig    *shutdown.Signal
	logger *zap.Logger

	generated int64
}

// NewProducer creates a producer writing to ch
func NewProducer(config *ProducerConfig, gen matrix.Generator, ch *channel.Channel, sig *shutdown.Signal) (*Producer, error) {
	if config == nil {
		return nil, fmt.Errorf("producer config is required")
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("matrix size must be positive, got %d", config.Size)
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	}
	if gen == nil || ch == nil || sig == nil {
		return nil, fmt.Errorf("producer requires a generator, a channel and a shutdown signal")
	}

	cfg := *config
	cfg.Clock = types.ClockOrDefault(cfg.Clock)

	return &Producer{
		lifecycle: newLifecycle(),
		config:    &cfg,
		gen:       gen,
		ch:        ch,
		sig:       sig,
		logger:    logging.OrNop(cfg.Logger).Named("producer"),
	}, nil
}

// Run generates pairs until the signal is raised or ctx is done. End is queued on
// every return path, including a panicking generator. Run may be called once.
func (p *Producer) Run(ctx context.Context) (err error) {
	if err := p.start("producer"); err != nil {
		return err
	}
	p.logger.Info("producer started", zap.Int("size", p.config.Size), zap.Duration("interval", p.config.Interval))

	defer p.finish(&err)
	defer func() {
		if r := recover(); r != nil {
			err = panicError("generate", "", r)
		}
	}()

	// runCtx also ends when the signal is raised, releasing a blocked bounded send or pacing wait
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.sig.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	for !p.sig.IsSet() {
		if ctx.Err() != nil {
			p.logger.Info("producer interrupted", zap.Error(ctx.Err()))
			return nil
		}

		pair := matrix.Pair{
			ID: uuid.NewString(),
			A:  p.gen.Generate(p.config.Size),
			B:  p.gen.Generate(p.config.Size),
		}

		if err := p.ch.Send(runCtx, channel.PairMessage(pair)); err != nil {
			if runCtx.Err() != nil {
				// stop or interruption while waiting for room; the pair was never queued
				break
			}
			return fmt.Errorf("producer: queue pair %s: %w", pair.ID, err)
		}
		atomic.AddInt64(&p.generated, 1)
		p.config.Metrics.IncGenerated()
		p.config.Metrics.SetQueueDepth(p.ch.Len())
		p.logger.Debug("pair queued", zap.String("pair_id", pair.ID), zap.Int("queue_len", p.ch.Len()))

		p.pace(runCtx)
	}

	if ctx.Err() != nil {
		p.logger.Info("producer interrupted", zap.Error(ctx.Err()))
	} else {
		p.logger.Info("stop requested", zap.String("reason", p.sig.Reason()))
	}
	return nil
}

// pace waits Interval, returning early when ctx ends
func (p *Producer) pace(ctx context.Context) {
	timer := p.config.Clock.NewTimer(p.config.Interval)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-ctx.Done():
	}
}

// finish queues End and marks the producer terminated
func (p *Producer) finish(errp *error) {
	p.setState(WorkerStateStopping)

	if endErr := p.ch.SendEnd(); endErr != nil {
		p.logger.Error("failed to queue end", zap.Error(endErr))
		*errp = errors.Join(*errp, fmt.Errorf("producer: queue end: %w", endErr))
	} else {
		p.logger.Info("end queued", zap.Int64("generated", atomic.LoadInt64(&p.generated)))
	}
	if *errp != nil {
		p.logger.Error("producer failed", zap.Error(*errp))
	}

	p.terminate()
}

// Stats returns producer statistics
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		State:     p.State(),
		Generated: atomic.LoadInt64(&p.generated),
	}
}

// ProducerStats defines producer statistics
type ProducerStats struct {
	State     WorkerState
	Generated int64
}
