// Package storage persists the narrow, restorable part of a session: the
// access token. The user profile is never written; it is fetched again after
// every restart. The API cookies live in a separate entry, the way a browser
// keeps its cookie store apart from application storage.
package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultKey names the single storage entry holding the persisted state.
const DefaultKey = "auth-storage"

var ErrCorrupted = errors.New("persisted session state is corrupted")

// State is the persisted snapshot. It deliberately carries only the token.
type State struct {
	Token string `json:"token"`
}

// Storage keeps one State under a fixed key. Load returns a zero State and no
// error when nothing was persisted.
type Storage interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	Clear(ctx context.Context) error
	// Exists reports whether an entry is persisted.
	Exists(ctx context.Context) (bool, error)
}

// Cookie is a cookie as the API set it, together with the URL that set it.
// A zero Expires is a session cookie.
type Cookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// CookieStorage keeps the API cookies between processes. LoadCookies
// returns nil and no error when nothing was saved.
type CookieStorage interface {
	LoadCookies(ctx context.Context) ([]Cookie, error)
	SaveCookies(ctx context.Context, cookies []Cookie) error
}

// Backend is a storage holding both the state and the cookies. Every backend
// of this package is one.
type Backend interface {
	Storage
	CookieStorage
}

type cookieFile struct {
	Cookies []Cookie `json:"cookies"`
}
