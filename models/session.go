package models

import "github.com/octabyte/sitemon/enums"

// Session is the observable authentication state of the client.
//
// A non-empty Token with IsAuthenticated == false means the session is being
// restored (or a fresh token is waiting for its profile fetch). Route guards
// must treat that state as pending, not as logged out.
type Session struct {
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"is_authenticated"`
	IsLoading       bool   `json:"is_loading"`
}

// Status collapses the session fields into the state a route guard acts on.
func (s Session) Status() enums.AuthStatus {
	switch {
	case s.IsAuthenticated:
		return enums.AuthStatusAuthenticated
	case s.Token != "":
		return enums.AuthStatusPending
	default:
		return enums.AuthStatusAnonymous
	}
}
