package session

import (
	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/models"
)

type Decision int

const (
	// Allow lets the navigation through.
	Allow Decision = iota
	// Wait defers the decision: the session is being restored.
	Wait
	// Redirect sends the user to Verdict.Route.
	Redirect
)

type Verdict struct {
	Decision Decision
	Route    string
}

// RequireAuth guards private routes. A pending session is never treated as
// logged out.
func RequireAuth(s models.Session) Verdict {
	switch s.Status() {
	case enums.AuthStatusAuthenticated:
		return Verdict{Decision: Allow}
	case enums.AuthStatusPending:
		return Verdict{Decision: Wait}
	default:
		return Verdict{Decision: Redirect, Route: enums.RouteLogin}
	}
}

// RequireGuest guards the login and registration routes.
func RequireGuest(s models.Session) Verdict {
	switch s.Status() {
	case enums.AuthStatusAuthenticated:
		return Verdict{Decision: Redirect, Route: enums.RouteDashboard}
	case enums.AuthStatusPending:
		return Verdict{Decision: Wait}
	default:
		return Verdict{Decision: Allow}
	}
}
