package elasticpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
)

// Operation names used as metric labels and log attributes.
const (
	opCompile      = "query.compile"
	opSearch       = "query.search"
	opFacetValues  = "facet.values"
	opInvalidate   = "facet.invalidate"
	opPurge        = "facet.purge"
	opIndex        = "content.index"
	opDelete       = "content.delete"
	opBulk         = "content.bulk"
	opIndexVersion = "index.version"
	opPing         = "ping"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "elasticpress",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Client operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "elasticpress",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "Client operation duration in seconds.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already
// registered under the same name so several clients can share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("elasticpress: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("elasticpress: metric registered with another type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// outcome buckets an error for the outcome label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgs),
		errors.Is(err, domain.ErrUnknownAlgorithm),
		errors.Is(err, domain.ErrUnknownField):
		return "rejected"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// observer records every client operation. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(ctx context.Context, op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	res := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, res).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "operation failed",
			slog.String("op", op),
			slog.String("outcome", res),
			slog.Duration("duration", dur),
			slog.Any("error", err),
		)
		return
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "operation completed",
		slog.String("op", op),
		slog.Duration("duration", dur),
	)
}
