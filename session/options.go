package session

import (
	"net/http"
	"time"

	"github.com/octabyte/sitemon/storage"
)

const defaultTimeout = 30 * time.Second

// Navigator performs the navigation side effects of the session, such as
// sending the user to the login entry point after the session expired.
type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api/v1.
	BaseURL string
	Timeout time.Duration
	// Storage defaults to an in-memory storage.
	Storage storage.Storage
	// Cookies keeps the API cookies, the refresh cookie among them, across
	// processes. When nil they live only as long as the Store.
	Cookies   storage.CookieStorage
	Navigator Navigator
	// Transport replaces the HTTP transport of the resty client.
	Transport http.RoundTripper

	Tracing     bool
	ServiceName string
}
