package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	pipeerrors "github.com/jzx17/matrixpipe/internal/errors"
	"github.com/jzx17/matrixpipe/internal/logging"
	"github.com/jzx17/matrixpipe/internal/metrics"
	"github.com/jzx17/matrixpipe/pkg/channel"
	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/jzx17/matrixpipe/pkg/shutdown"
	"github.com/jzx17/matrixpipe/pkg/sink"
	"github.com/jzx17/matrixpipe/pkg/types"
	"go.uber.org/zap"
)

// Stage names reported in consumer errors
const (
	StageValidate = "validate"
	StageMultiply = "multiply"
	StageWrite    = "write"
)

// ConsumerConfig defines configuration for the consumer
type ConsumerConfig struct {
	// PollTimeout bounds each receive so the shutdown signal is re-checked
	PollTimeout time.Duration

	// ErrorHandler decides whether a failed pair stops the consumer.
	// The default drops dimension mismatches and fails fast on everything else.
	ErrorHandler pipeerrors.ErrorHandler

	// ProducerDone is closed once the producer can no longer queue messages.
	// While it is open an idle poll after the signal does not stop the consumer;
	// End does. Nil means no producer is attached and signal plus empty channel stops.
	ProducerDone <-chan struct{}

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// DefaultConsumerConfig returns default configuration
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		PollTimeout: time.Second,
		Clock:       types.NewRealClock(),
	}
}

// Consumer receives pairs, multiplies them, and writes each product to its sink
// in dequeue order. It stops on End, or once the signal is raised and the channel is empty.
type Consumer struct {
	lifecycle

	config  *ConsumerConfig
	ch      *channel.Channel
	sig     *shutdown.Signal
	open    sink.Opener
	handler pipeerrors.ErrorHandler
	logger  *zap.Logger

	written   int64
	discarded int64
	latencies latencyWindow
}

// NewConsumer creates a consumer reading from ch. open is called once when Run starts.
func NewConsumer(config *ConsumerConfig, ch *channel.Channel, sig *shutdown.Signal, open sink.Opener) (*Consumer, error) {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	if config.PollTimeout <= 0 {
		return nil, fmt.Errorf("poll timeout must be positive, got %v", config.PollTimeout)
	}
	if ch == nil || sig == nil || open == nil {
		return nil, fmt.Errorf("consumer requires a channel, a shutdown signal and a sink opener")
	}

	cfg := *config
	cfg.Clock = types.ClockOrDefault(cfg.Clock)
	logger := logging.OrNop(cfg.Logger).Named("consumer")

	handler := cfg.ErrorHandler
	if handler == nil {
		handler = DefaultErrorHandler(logger)
	}

	return &Consumer{
		lifecycle: newLifecycle(),
		config:    &cfg,
		ch:        ch,
		sig:       sig,
		open:      open,
		handler:   handler,
		logger:    logger,
	}, nil
}

// DefaultErrorHandler drops pairs with incompatible shapes and fails fast on anything else
func DefaultErrorHandler(logger *zap.Logger) pipeerrors.ErrorHandler {
	router := pipeerrors.NewRouter()
	_ = router.Bind(matrix.ErrDimensionMismatch, pipeerrors.NewContinueOnErrorHandler(&pipeerrors.ContinueOnErrorConfig{
		IgnoredErrors: []error{matrix.ErrDimensionMismatch},
		Logger:        logger,
	}))
	return router
}

// Run consumes until End arrives, the signal is raised and the channel stays empty
// for a poll interval, or ctx is done. The sink is opened at start and closed on
// every return path. A failure raises the shutdown signal so the producer stops too.
func (c *Consumer) Run(ctx context.Context) (err error) {
	if err := c.start("consumer"); err != nil {
		return err
	}
	c.logger.Info("consumer started", zap.Duration("poll_timeout", c.config.PollTimeout))

	defer c.finish(&err)

	out, err := c.open()
	if err != nil {
		return fmt.Errorf("consumer: open sink: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("consumer: close sink: %w", closeErr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = panicError(StageMultiply, "", r)
		}
	}()

	for {
		msg, ok, recvErr := c.ch.Receive(ctx, c.config.PollTimeout)
		c.config.Metrics.SetQueueDepth(c.ch.Len())
		if recvErr != nil {
			c.logger.Info("consumer interrupted", zap.Error(recvErr))
			return nil
		}

		if !ok {
			// nothing for a whole poll interval: stop only once asked to, drained,
			// and the producer can no longer queue a pair ahead of End
			if c.sig.IsSet() && c.ch.Len() == 0 && c.producerFinished() {
				c.logger.Info("stop requested and channel drained", zap.String("reason", c.sig.Reason()))
				return nil
			}
			continue
		}

		if msg.IsEnd() {
			c.logger.Info("end received", zap.Uint64("seq", msg.Seq))
			return nil
		}

		if procErr := c.process(out, msg); procErr != nil {
			stage, _ := types.StageOf(procErr)
			errCtx := pipeerrors.NewErrorContext(procErr, stage, msg.Seq, msg.Pair.ID)
			if handled := c.handler.HandleError(ctx, errCtx); handled != nil {
				return fmt.Errorf("consumer: pair %s: %w", msg.Pair.ID, handled)
			}
			atomic.AddInt64(&c.discarded, 1)
			c.config.Metrics.IncDiscarded()
		}
	}
}

func (c *Consumer) producerFinished() bool {
	if c.config.ProducerDone == nil {
		return true
	}
	select {
	case <-c.config.ProducerDone:
		return true
	default:
		return false
	}
}

// process multiplies one pair and writes the product before returning
func (c *Consumer) process(out sink.Sink, msg channel.Message) error {
	pair := msg.Pair
	if err := pair.CheckCompatible(); err != nil {
		return types.NewStageError(StageValidate, pair.ID, err).WithContext("seq", msg.Seq)
	}

	start := c.config.Clock.Now()
	product := matrix.Multiply(pair.A, pair.B)
	elapsed := c.config.Clock.Since(start)
	c.latencies.add(elapsed)
	c.config.Metrics.ObserveMultiply(elapsed)

	if err := out.Write(product); err != nil {
		return types.NewStageError(StageWrite, pair.ID, err).WithContext("seq", msg.Seq)
	}

	atomic.AddInt64(&c.written, 1)
	c.config.Metrics.IncWritten()
	c.logger.Debug("product written",
		zap.String("pair_id", pair.ID),
		zap.Uint64("seq", msg.Seq),
		zap.String("shape", product.Shape()),
		zap.Duration("multiply", elapsed))
	return nil
}

func (c *Consumer) finish(errp *error) {
	if *errp != nil {
		c.logger.Error("consumer failed", zap.Error(*errp))
		c.sig.Set("consumer failed")
	} else {
		c.logger.Info("consumer stopped",
			zap.Int64("written", atomic.LoadInt64(&c.written)),
			zap.Int64("discarded", atomic.LoadInt64(&c.discarded)))
	}
	c.terminate()
}

// Stats returns consumer statistics
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		State:     c.State(),
		Written:   atomic.LoadInt64(&c.written),
		Discarded: atomic.LoadInt64(&c.discarded),
		Latencies: c.latencies.snapshot(),
	}
}

// ConsumerStats defines consumer statistics
type ConsumerStats struct {
	State     WorkerState
	Written   int64
	Discarded int64

	// Latencies holds the most recent multiply durations, oldest first
	Latencies []time.Duration
}
