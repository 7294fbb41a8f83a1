// Package config loads startup configuration: the matrix dimension from the
// command line and the remaining options from MATRIXPIPE_* environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "MATRIXPIPE"

// Options holds settings that have workable defaults.
type Options struct {
	Output        string        `envconfig:"OUTPUT" default:"multiplication_results.txt" validate:"required"`
	Append        bool          `envconfig:"APPEND" default:"false"`
	Interval      time.Duration `envconfig:"INTERVAL" default:"1s" validate:"gt=0"`
	PollTimeout   time.Duration `envconfig:"POLL_TIMEOUT" default:"1s" validate:"gt=0"`
	MaxValue      int64         `envconfig:"MAX_VALUE" default:"10" validate:"gte=0,lte=1000000"`
	QueueCapacity int           `envconfig:"QUEUE_CAPACITY" default:"0" validate:"gte=0"`
	Seed          uint64        `envconfig:"SEED"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogDev        bool          `envconfig:"LOG_DEV" default:"false"`
	MetricsAddr   string        `envconfig:"METRICS_ADDR"`
	Stdin         bool          `envconfig:"STDIN" default:"true"`
}

// MaxDimension is the largest accepted matrix dimension; keep in sync with the Dimension tag
const MaxDimension = 1000

// Config holds all application configuration.
type Config struct {
	// Dimension is N for the generated N x N matrices, at most MaxDimension
	Dimension int `validate:"gt=0,lte=1000"`

	Options
}

// StartupConfigError reports configuration that prevents the pipeline from starting
type StartupConfigError struct {
	Reason string
	Err    error
}

func (e *StartupConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *StartupConfigError) Unwrap() error {
	return e.Err
}

// ErrHelp is returned when -h or -help was requested
var ErrHelp = flag.ErrHelp

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load parses args (without the program name) on top of the environment.
// Flags override environment values. Usage is written to stderr on failure.
func Load(prog string, args []string, stderr io.Writer) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.Options); err != nil {
		return nil, &StartupConfigError{Reason: "invalid environment", Err: err}
	}

	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { Usage(stderr, prog, fs) }

	fs.StringVar(&cfg.Output, "output", cfg.Output, "file the product records are written to")
	fs.BoolVar(&cfg.Append, "append", cfg.Append, "append to the output file instead of truncating it")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "delay between generated pairs")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "consumer receive timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, &StartupConfigError{Reason: "invalid flags", Err: err}
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, &StartupConfigError{Reason: fmt.Sprintf("expected exactly one matrix dimension argument, got %d", fs.NArg())}
	}

	n, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fs.Usage()
		return nil, &StartupConfigError{Reason: "matrix dimension must be an integer", Err: err}
	}
	cfg.Dimension = n

	if err := validate.Struct(&cfg); err != nil {
		fs.Usage()
		return nil, &StartupConfigError{Reason: "invalid configuration", Err: err}
	}

	return &cfg, nil
}

// Usage writes the command line synopsis and the environment options to w
func Usage(w io.Writer, prog string, fs *flag.FlagSet) {
	fmt.Fprintf(w, "usage: %s [flags] <dimension>\n\n", prog)
	fmt.Fprintf(w, "Generates pairs of random dimension x dimension matrices, multiplies them,\n")
	fmt.Fprintf(w, "and appends the products to the output file. Type 'stop' or press Ctrl+C to end.\n\n")
	if fs != nil {
		fmt.Fprintln(w, "flags:")
		fs.PrintDefaults()
		fmt.Fprintln(w)
	}
	_ = envconfig.Usagef(EnvPrefix, &Options{}, w, envUsageFormat)
}

const envUsageFormat = `environment:
{{range .}}  {{usage_key .}}	{{usage_type .}}	(default {{usage_default .}})
{{end}}`
