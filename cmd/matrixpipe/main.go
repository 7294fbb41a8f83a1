// Command matrixpipe generates pairs of random square matrices, multiplies them
// on a second goroutine, and writes each product to a results file until stopped.
//
//	matrixpipe [flags] <dimension>
//
// Type "stop" on standard input or press Ctrl+C to stop. Pairs already queued
// are still multiplied and written before the program exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jzx17/matrixpipe/internal/config"
	"github.com/jzx17/matrixpipe/internal/logging"
	"github.com/jzx17/matrixpipe/internal/metrics"
	"github.com/jzx17/matrixpipe/internal/trigger"
	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/jzx17/matrixpipe/pkg/pipeline"
	"github.com/jzx17/matrixpipe/pkg/shutdown"
	"github.com/jzx17/matrixpipe/pkg/sink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// optional .env in the working directory; real environment variables win
	_ = godotenv.Load()

	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run returns the process exit status
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args[0], args[1:], stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if err := start(cfg, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "fatal error: %v\n", err)
		return 1
	}
	return 0
}

func start(cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	// 1. Logger
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Development = cfg.LogDev
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	// 3. Pipeline
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	sig := shutdown.New()
	p, err := pipeline.New(&pipeline.Config{
		Size:          cfg.Dimension,
		Interval:      cfg.Interval,
		PollTimeout:   cfg.PollTimeout,
		QueueCapacity: cfg.QueueCapacity,
		Generator:     matrix.NewRandomGenerator(cfg.MaxValue, seed),
		Sink:          sink.FileOpener(cfg.Output, sink.FileOptions{Append: cfg.Append}),
		Logger:        logger,
		Metrics:       m,
	}, sig)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	logger = logger.With(zap.String("run_id", p.RunID()))

	// 4. Stop triggers
	release := trigger.WatchSignals(ctx, sig, logger)
	defer release()

	if cfg.Stdin {
		listener := trigger.NewLineListener(stdin, stdout, sig, logger)
		go func() {
			if err := listener.Run(); err != nil {
				logger.Warn("command listener stopped", zap.Error(err))
			}
		}()
	}

	// 5. Run until both workers have terminated
	logger.Info("starting",
		zap.Int("dimension", cfg.Dimension),
		zap.String("output", cfg.Output),
		zap.Bool("append", cfg.Append))

	summary, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	fmt.Fprintln(stdout, "\nprogram finished.")
	printSummary(stdout, cfg.Output, summary)
	return nil
}
