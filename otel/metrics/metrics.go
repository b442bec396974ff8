package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Refresh outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDiscarded = "discarded"
)

var (
	meter metric.Meter

	refreshTotal      metric.Int64Counter
	refreshDuration   metric.Float64Histogram
	authFailuresTotal metric.Int64Counter
	replaysTotal      metric.Int64Counter
)

// Init creates the session instruments on the global meter provider. Until it
// is called the Record functions do nothing.
func Init(serviceName string) error {
	meter = otel.Meter(serviceName)

	var err error

	refreshTotal, err = meter.Int64Counter(
		"session_refresh_total",
		metric.WithDescription("Token refresh exchanges by outcome"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_refresh_total counter: %w", err)
	}

	refreshDuration, err = meter.Float64Histogram(
		"session_refresh_duration_seconds",
		metric.WithDescription("Token refresh exchange duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_refresh_duration_seconds histogram: %w", err)
	}

	authFailuresTotal, err = meter.Int64Counter(
		"session_auth_failures_total",
		metric.WithDescription("Requests rejected with 401 that entered the refresh flow"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_auth_failures_total counter: %w", err)
	}

	replaysTotal, err = meter.Int64Counter(
		"session_replays_total",
		metric.WithDescription("Requests replayed after a refresh"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create session_replays_total counter: %w", err)
	}

	return nil
}

func RecordRefresh(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if refreshTotal != nil {
		refreshTotal.Add(ctx, 1, attrs)
	}
	if refreshDuration != nil {
		refreshDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

func RecordAuthFailure(ctx context.Context, route string) {
	if authFailuresTotal != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("http.route", route)))
	}
}

func RecordReplay(ctx context.Context, route string, success bool) {
	if replaysTotal != nil {
		replaysTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.Bool("success", success),
		))
	}
}
