package enums

// Navigation targets used by the session guards.
const (
	RouteLogin     = "/login"
	RouteDashboard = "/dashboard"
)

// Backend endpoints, relative to the API base URL.
const (
	PathLogin                = "/auth/login"
	PathRegister             = "/auth/register"
	PathRefresh              = "/auth/refresh"
	PathLogout               = "/auth/logout"
	PathPasswordResetRequest = "/auth/password/reset-request"
	PathPasswordReset        = "/auth/password/reset"
	PathMe                   = "/users/me"
	PathMePassword           = "/users/me/password"
	PathMeOnboarding         = "/users/me/onboarding"
)
