package otel

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentClient traces every request of rc with a client span and
// propagates the trace context in the request headers. The span ends when the
// response arrives or the request fails.
func InstrumentClient(rc *resty.Client, serviceName string, clientName string) *resty.Client {
	tracer := otel.Tracer(serviceName)

	rc.OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
		ctx, _ := tracer.Start(r.Context(), fmt.Sprintf("HTTP.%s %s %s", clientName, r.Method, r.URL),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLFull(c.BaseURL+r.URL),
				attribute.String("http.target", r.URL),
				attribute.Bool("auth.bearer_present", r.Header.Get("Authorization") != ""),
			),
		)
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(r.Header))
		r.SetContext(ctx)
		return nil
	})

	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		finishSpan(resp.Request.Context(), resp.StatusCode(), nil)
		return nil
	})

	rc.OnError(func(r *resty.Request, err error) {
		finishSpan(r.Context(), 0, err)
	})

	return rc
}

func finishSpan(ctx context.Context, statusCode int, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	if statusCode > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(statusCode))
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case statusCode >= 400:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	default:
		span.SetStatus(codes.Ok, "success")
	}
}
