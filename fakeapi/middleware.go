package fakeapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	sitemonecho "github.com/octabyte/sitemon/otel/echo"
)

const (
	Authorization = "Authorization"
	TokenKey      = sitemonecho.TokenKey
	EmailKey      = "requestEmail"
)

// SetTokenInContext stores the bearer token of the request under TokenKey.
// The header wins over an Authorization cookie.
func SetTokenInContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(Authorization)

			if token == "" {
				if cookie, err := c.Cookie(Authorization); err == nil {
					token = cookie.Value
				}
			}

			c.Set(TokenKey, strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")))
			return next(c)
		}
	}
}

// RequireToken rejects requests whose token does not resolve to an account
// and stores the account email under EmailKey otherwise.
func RequireToken(resolve func(token string) (string, bool)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, _ := c.Get(TokenKey).(string)
			email, ok := resolve(token)
			if token == "" || !ok {
				c.Response().Header().Set("WWW-Authenticate", "Bearer")
				return c.JSON(http.StatusUnauthorized, detail("not authenticated"))
			}
			c.Set(EmailKey, email)
			return next(c)
		}
	}
}
