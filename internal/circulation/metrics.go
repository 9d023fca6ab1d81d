// internal/circulation/metrics.go
package circulation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"shelfkeeper/internal/apperr"
)

type engineMetrics struct {
	transitions metric.Int64Counter
	rejections  metric.Int64Counter
	reminded    metric.Int64Counter
}

func newEngineMetrics(m metric.Meter) *engineMetrics {
	em := &engineMetrics{}
	var err error
	if em.transitions, err = m.Int64Counter("shelfkeeper.circulation.transitions",
		metric.WithDescription("Committed circulation transitions by event type.")); err != nil {
		em.transitions, _ = noop.Meter{}.Int64Counter("")
	}
	if em.rejections, err = m.Int64Counter("shelfkeeper.circulation.rejections",
		metric.WithDescription("Failed circulation operations by operation and error kind.")); err != nil {
		em.rejections, _ = noop.Meter{}.Int64Counter("")
	}
	if em.reminded, err = m.Int64Counter("shelfkeeper.circulation.reminders",
		metric.WithDescription("Due-soon reminders created.")); err != nil {
		em.reminded, _ = noop.Meter{}.Int64Counter("")
	}
	return em
}

func (em *engineMetrics) transition(ctx context.Context, eventType string) {
	em.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}

func (em *engineMetrics) rejected(ctx context.Context, op string, err error) {
	em.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", string(apperr.KindOf(err))),
	))
}

func (em *engineMetrics) reminders(ctx context.Context, n int) {
	if n > 0 {
		em.reminded.Add(ctx, int64(n))
	}
}
