// Package session manages the client side of an authenticated dashboard
// session: the current access token, the HTTP client that carries it, the
// coordinated refresh of an expired token and the observable session state.
//
// # Components
//
//   - credentialHolder: the in-memory access token, read by every dispatch.
//   - Client: a resty client whose OnBeforeRequest hook attaches the bearer
//     token. A 401 answer starts (or joins) one refresh and replays the
//     request once with the new token.
//   - refreshCoordinator: IDLE while no refresh runs, REFRESHING while one
//     pendingRefresh is in flight. Late arrivals wait on that handle instead
//     of issuing a second exchange.
//   - Store: the state {User, Token, IsAuthenticated, IsLoading} with a closed
//     set of actions (Login, Register, Logout, Refresh, FetchUser, SetToken)
//     and subscriptions. Only Store writes the credential holder.
//
// # Persistence
//
// The store persists the token alone through a storage.Storage. Rehydrate
// restores it at startup and fetches the user in the background; until the
// fetch resolves the session is pending (models.Session.Status).
//
// # Errors
//
// Backend answers other than 2xx are *APIError; a 401 matches
// ErrAuthentication. Network failures are *TransportError. A failed refresh
// yields ErrRefreshExhausted and clears the session. Message turns any of
// them into text for the user.
package session
