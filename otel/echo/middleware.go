package echo

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenKey is the echo context key holding the bearer token of the request.
const TokenKey = "requestToken"

// Middleware traces every request with a server span continuing the caller's
// trace, and records whether the request carried a bearer token.
func Middleware(serviceName string, opts ...otelecho.Option) echo.MiddlewareFunc {
	return MiddlewareWithSkipper(serviceName, nil, opts...)
}

// MiddlewareWithSkipper is Middleware for the requests skipper rejects.
func MiddlewareWithSkipper(serviceName string, skipper func(c echo.Context) bool, opts ...otelecho.Option) echo.MiddlewareFunc {
	baseMiddleware := otelecho.Middleware(serviceName, opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		traced := baseMiddleware(func(c echo.Context) error {
			err := next(c)

			span := trace.SpanFromContext(c.Request().Context())
			if span.IsRecording() {
				token, _ := c.Get(TokenKey).(string)
				span.SetAttributes(
					attribute.String("http.route", c.Path()),
					attribute.Bool("auth.bearer_present", token != ""),
				)
				if err != nil {
					span.SetAttributes(attribute.String("error.message", err.Error()))
				}
			}

			return err
		})

		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			return traced(c)
		}
	}
}
