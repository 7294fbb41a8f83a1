// Package pipeline wires a Producer and a Consumer around one Channel and one shutdown Signal
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pipeerrors "github.com/jzx17/matrixpipe/internal/errors"
	"github.com/jzx17/matrixpipe/internal/logging"
	"github.com/jzx17/matrixpipe/internal/metrics"
	"github.com/jzx17/matrixpipe/pkg/channel"
	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/jzx17/matrixpipe/pkg/shutdown"
	"github.com/jzx17/matrixpipe/pkg/sink"
	"github.com/jzx17/matrixpipe/pkg/types"
	"github.com/jzx17/matrixpipe/pkg/worker"
	"go.uber.org/zap"
)

// PipelineState defines the state of Pipeline
type PipelineState int32

const (
	// StateCreated Pipeline is created
	StateCreated PipelineState = iota
	// StateRunning Pipeline is running
	StateRunning
	// StateStopped both workers have terminated
	StateStopped
)

// String returns string representation of state
func (s PipelineState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ErrAlreadyStarted is returned by a second call to Run
var ErrAlreadyStarted = errors.New("pipeline already started")

// Config defines pipeline configuration
type Config struct {
	// Size is N for the generated N x N matrices
	Size int

	// Interval is the producer pacing interval
	Interval time.Duration

	// PollTimeout bounds each consumer receive
	PollTimeout time.Duration

	// QueueCapacity bounds pending pairs; 0 means unbounded
	QueueCapacity int

	// Generator produces matrix entries (optional, defaults to a random generator)
	Generator matrix.Generator

	// Sink opens the consumer output
	Sink sink.Opener

	// ErrorHandler for consumer failures (optional)
	ErrorHandler pipeerrors.ErrorHandler

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns default configuration for n x n matrices written to open
func DefaultConfig(n int, open sink.Opener) *Config {
	return &Config{
		Size:        n,
		Interval:    time.Second,
		PollTimeout: time.Second,
		Sink:        open,
		Clock:       types.NewRealClock(),
	}
}

// Pipeline runs one producer and one consumer until both have terminated
type Pipeline struct {
	runID  string
	state  int32 // atomic PipelineState
	config *Config
	sig    *shutdown.Signal
	ch     *channel.Channel
	logger *zap.Logger

	producer *worker.Producer
	consumer *worker.Consumer
}

// New creates a pipeline. sig is shared with whatever stop triggers the caller installs.
func New(config *Config, sig *shutdown.Signal) (*Pipeline, error) {
	if config == nil {
		return nil, fmt.Errorf("pipeline config is required")
	}
	if sig == nil {
		return nil, fmt.Errorf("pipeline requires a shutdown signal")
	}
	if config.QueueCapacity < 0 {
		return nil, fmt.Errorf("queue capacity must not be negative, got %d", config.QueueCapacity)
	}

	cfg := *config
	cfg.Clock = types.ClockOrDefault(cfg.Clock)
	if cfg.Generator == nil {
		cfg.Generator = matrix.NewRandomGenerator(matrix.DefaultMaxValue, uint64(time.Now().UnixNano()))
	}

	runID := uuid.NewString()
	logger := logging.OrNop(cfg.Logger).With(zap.String("run_id", runID))

	ch := channel.New(channel.WithCapacity(cfg.QueueCapacity), channel.WithClock(cfg.Clock))

	producer, err := worker.NewProducer(&worker.ProducerConfig{
		Size:     cfg.Size,
		Interval: cfg.Interval,
		Clock:    cfg.Clock,
		Logger:   logger,
		Metrics:  cfg.Metrics,
	}, cfg.Generator, ch, sig)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}

	consumer, err := worker.NewConsumer(&worker.ConsumerConfig{
		PollTimeout:  cfg.PollTimeout,
		ProducerDone: producer.Done(),
		ErrorHandler: cfg.ErrorHandler,
		Clock:        cfg.Clock,
		Logger:       logger,
		Metrics:      cfg.Metrics,
	}, ch, sig, cfg.Sink)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	return &Pipeline{
		runID:    runID,
		state:    int32(StateCreated),
		config:   &cfg,
		sig:      sig,
		ch:       ch,
		logger:   logger.Named("pipeline"),
		producer: producer,
		consumer: consumer,
	}, nil
}

// Run starts both workers and blocks until both have terminated.
// Cancelling ctx raises the shutdown signal; the workers then drain and stop
// the same way they do for any other stop request. Run may be called once.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if !atomic.CompareAndSwapInt32(&p.state, int32(StateCreated), int32(StateRunning)) {
		return Summary{}, ErrAlreadyStarted
	}
	defer atomic.StoreInt32(&p.state, int32(StateStopped))

	start := p.config.Clock.Now()
	p.logger.Info("pipeline started",
		zap.Int("size", p.config.Size),
		zap.Int("queue_capacity", p.config.QueueCapacity))

	workerCtx := context.WithoutCancel(ctx)

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Stop(fmt.Sprintf("interrupted: %v", ctx.Err()))
		case <-finished:
		}
	}()

	var wg sync.WaitGroup
	var producerErr, consumerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		producerErr = p.producer.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		consumerErr = p.consumer.Run(workerCtx)
	}()
	wg.Wait()
	close(finished)

	summary := p.summarize(p.config.Clock.Since(start))
	err := errors.Join(producerErr, consumerErr)
	if err != nil {
		p.logger.Error("pipeline stopped with errors", append(summary.Fields(), zap.Error(err))...)
	} else {
		p.logger.Info("pipeline stopped", summary.Fields()...)
	}
	return summary, err
}

// Stop raises the shutdown signal. It reports whether this call raised it.
func (p *Pipeline) Stop(reason string) bool {
	changed := p.sig.Set(reason)
	if changed {
		p.logger.Info("stop requested", zap.String("reason", reason))
	}
	return changed
}

// State returns the current pipeline state
func (p *Pipeline) State() PipelineState {
	return PipelineState(atomic.LoadInt32(&p.state))
}

// RunID returns the identifier attached to every log line of this run
func (p *Pipeline) RunID() string {
	return p.runID
}

// Signal returns the shutdown signal shared by both workers
func (p *Pipeline) Signal() *shutdown.Signal {
	return p.sig
}

// Pending returns the number of queued messages
func (p *Pipeline) Pending() int {
	return p.ch.Len()
}

func (p *Pipeline) summarize(elapsed time.Duration) Summary {
	ps := p.producer.Stats()
	cs := p.consumer.Stats()
	mean, stddev := latencyStats(cs.Latencies)

	return Summary{
		RunID:          p.runID,
		Generated:      ps.Generated,
		Written:        cs.Written,
		Discarded:      cs.Discarded,
		Elapsed:        elapsed,
		StopReason:     p.sig.Reason(),
		MultiplyMean:   mean,
		MultiplyStdDev: stddev,
	}
}
