package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTracedEcho(t *testing.T, skipper func(echo.Context) bool) (*echo.Echo, *tracetest.SpanRecorder, trace.Tracer) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(TokenKey, c.Request().Header.Get("Authorization"))
			return next(c)
		}
	})
	e.Use(MiddlewareWithSkipper("fake-api", skipper,
		otelecho.WithTracerProvider(tp),
		otelecho.WithPropagators(propagation.TraceContext{}),
	))
	e.GET("/users/me", func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "not authenticated"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	return e, recorder, tp.Tracer("client")
}

func TestMiddlewareContinuesClientTrace(t *testing.T) {
	e, recorder, tracer := newTracedEcho(t, nil)

	ctx, clientSpan := tracer.Start(context.Background(), "client")
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer T1")
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	clientSpan.End()

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var server sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.SpanKind() == trace.SpanKindServer {
			server = s
		}
	}
	require.NotNil(t, server)
	assert.Equal(t, clientSpan.SpanContext().TraceID(), server.SpanContext().TraceID())
	assert.Equal(t, clientSpan.SpanContext().SpanID(), server.Parent().SpanID())
	assert.Contains(t, server.Attributes(), attribute.Bool("auth.bearer_present", true))
	assert.Contains(t, server.Attributes(), attribute.String("http.route", "/users/me"))
}

func TestMiddlewareSkipper(t *testing.T) {
	e, recorder, _ := newTracedEcho(t, func(c echo.Context) bool {
		return c.Request().URL.Path == "/health"
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, recorder.Ended())
}
