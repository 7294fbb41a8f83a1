package pipeline

import (
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a finished run
type Summary struct {
	RunID      string
	Generated  int64
	Written    int64
	Discarded  int64
	Elapsed    time.Duration
	StopReason string

	// Multiply latency over the consumer's most recent products
	MultiplyMean   time.Duration
	MultiplyStdDev time.Duration
}

// Lost returns pairs that were generated but neither written nor discarded.
// It is zero for every run that ended through End.
func (s Summary) Lost() int64 {
	return s.Generated - s.Written - s.Discarded
}

// Fields returns the summary as zap fields
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Int64("generated", s.Generated),
		zap.Int64("written", s.Written),
		zap.Int64("discarded", s.Discarded),
		zap.Duration("elapsed", s.Elapsed),
		zap.String("stop_reason", s.StopReason),
		zap.Duration("multiply_mean", s.MultiplyMean),
		zap.Duration("multiply_stddev", s.MultiplyStdDev),
	}
}

// latencyStats returns mean and sample standard deviation; stddev is zero below two samples
func latencyStats(samples []time.Duration) (mean, stddev time.Duration) {
	if len(samples) == 0 {
		return 0, 0
	}
	xs := lo.Map(samples, func(d time.Duration, _ int) float64 {
		return float64(d)
	})
	if len(xs) == 1 {
		return samples[0], 0
	}
	m, sd := stat.MeanStdDev(xs, nil)
	return time.Duration(m), time.Duration(sd)
}
