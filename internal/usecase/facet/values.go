package facet

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
)

// Invalidation triggers.
const (
	TriggerManual = "manual"
	TriggerPurge  = "purge"
)

// Values returns the distinct values of field, reading through the cache.
// An empty cached list is refetched. When the backend fails the result is
// an empty slice and an error wrapping domain.ErrBackendUnavailable.
func (e *Engine) Values(ctx context.Context, field string) ([]string, error) {
	if err := e.validField(field); err != nil {
		return []string{}, fmt.Errorf("%w: %w", domain.ErrUnknownField, err)
	}
	if cached, ok := e.cache.Get(ctx, field); ok && len(cached) > 0 {
		return cached, nil
	}
	v, err, _ := e.fills.Do(field, func() (any, error) {
		return e.fill(ctx, field)
	})
	if err != nil {
		return []string{}, err
	}
	return v.([]string), nil
}

func (e *Engine) fill(ctx context.Context, field string) ([]string, error) {
	path, err := fieldpath.Meta(field, fieldpath.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnknownField, err)
	}
	raw, err := e.values.DistinctValues(ctx, e.settings.Index, path.String(), e.settings.DistinctSize)
	if err != nil {
		e.logger.Error("Failed to fetch facet values", zap.String("field", field), zap.Error(err))
		return nil, fmt.Errorf("distinct values of %q: %w: %w", field, domain.ErrBackendUnavailable, err)
	}
	limit := e.settings.override(field).MaxValueLength
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		values = append(values, truncate(v, limit))
	}
	if err := e.cache.Set(ctx, field, values); err != nil {
		e.logger.Warn("Failed to cache facet values", zap.String("field", field), zap.Error(err))
	}
	return values, nil
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Invalidate drops the cached values of fields. Failures are logged only.
func (e *Engine) Invalidate(ctx context.Context, fields ...string) {
	e.invalidate(ctx, TriggerManual, fields)
}

// InvalidateAll drops the cached values of every facet field.
func (e *Engine) InvalidateAll(ctx context.Context) {
	e.invalidate(ctx, TriggerManual, e.Fields(ctx))
}

// Purge drops every cached facet entry, including fields no longer
// configured.
func (e *Engine) Purge(ctx context.Context) {
	for _, f := range e.Fields(ctx) {
		e.fills.Forget(f)
	}
	e.count(TriggerPurge)
	if err := e.cache.DeleteAll(ctx); err != nil {
		e.logger.Warn("Failed to purge facet values", zap.Error(err))
	}
}

func (e *Engine) invalidate(ctx context.Context, trigger string, fields []string) {
	if len(fields) == 0 {
		return
	}
	for _, f := range fields {
		e.fills.Forget(f)
	}
	e.count(trigger)
	if err := e.cache.Delete(ctx, fields...); err != nil {
		e.logger.Warn("Failed to invalidate facet values",
			zap.String("trigger", trigger),
			zap.Strings("fields", fields),
			zap.Error(err),
		)
	}
}

func (e *Engine) count(trigger string) {
	metrics.FacetInvalidationsTotal.WithLabelValues(trigger).Inc()
}

// HandleEvent invalidates every facet field on content changes. Bulk runs
// count only for the managed content type. It never returns an error so a
// failing cache cannot hold up the producer.
func (e *Engine) HandleEvent(ctx context.Context, ev event.Event) error {
	switch ev.Kind {
	case event.KindDeleted, event.KindIndexed:
	case event.KindBulkIndexed:
		if ev.ContentType != e.settings.ContentType {
			return nil
		}
	default:
		e.logger.Debug("Ignoring content event", zap.String("kind", string(ev.Kind)))
		return nil
	}
	e.invalidate(ctx, string(ev.Kind), e.Fields(ctx))
	return nil
}
