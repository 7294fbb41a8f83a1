// Package metrics exposes Prometheus collectors for the producer and consumer
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "matrixpipe"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PairsGenerated   prometheus.Counter
	RecordsWritten   prometheus.Counter
	PairsDiscarded   prometheus.Counter
	QueueDepth       prometheus.Gauge
	MultiplyDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PairsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_generated_total",
			Help:      "Matrix pairs generated and queued by the producer",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Product records written by the consumer",
		}),
		PairsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_discarded_total",
			Help:      "Pairs dropped because their shapes cannot be multiplied",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Messages pending in the hand-off channel",
		}),
		MultiplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "multiply_duration_seconds",
			Help:      "Time spent multiplying one pair",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.PairsGenerated, m.RecordsWritten, m.PairsDiscarded, m.QueueDepth, m.MultiplyDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IncGenerated records one queued pair
func (m *Metrics) IncGenerated() {
	if m == nil {
		return
	}
	m.PairsGenerated.Inc()
}

// IncWritten records one written product
func (m *Metrics) IncWritten() {
	if m == nil {
		return
	}
	m.RecordsWritten.Inc()
}

// IncDiscarded records one dropped pair
func (m *Metrics) IncDiscarded() {
	if m == nil {
		return
	}
	m.PairsDiscarded.Inc()
}

// SetQueueDepth records the pending message count
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveMultiply records one multiplication time
func (m *Metrics) ObserveMultiply(d time.Duration) {
	if m == nil {
		return
	}
	m.MultiplyDuration.Observe(d.Seconds())
}

// Serve exposes gatherer on addr at /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics endpoint listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
