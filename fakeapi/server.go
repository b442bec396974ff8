// Package fakeapi is an in-process stand-in for the dashboard backend: the
// auth and profile endpoints with HS256 access tokens, a refresh cookie,
// and switches to expire tokens or make the refresh and logout calls fail.
// It backs the session tests and the CLI's -demo mode.
package fakeapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/octabyte/sitemon/models"
	sitemonecho "github.com/octabyte/sitemon/otel/echo"
)

const (
	Prefix        = "/api/v1"
	RefreshCookie = "refresh_token"
)

type account struct {
	passwordHash []byte
	user         models.User
}

// accessClaims are the claims of the HS256 access tokens. Revocation goes
// through the server's jti table, not through expiry.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type Server struct {
	e      *echo.Echo
	secret []byte

	mu       sync.Mutex
	accounts map[string]*account
	// access maps the jti of every live access token to its account email.
	access  map[string]string
	refresh map[string]string

	refreshFails bool
	refreshDelay time.Duration
	logoutFails  bool

	refreshCalls int
	logoutCalls  int
	accepted     []string
}

type Option func(*options)

type options struct {
	serviceName string
}

// WithTracing continues the caller's traces in server spans named after
// serviceName.
func WithTracing(serviceName string) Option {
	return func(o *options) {
		o.serviceName = serviceName
	}
}

func New(opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		secret:   []byte(uuid.NewString()),
		accounts: make(map[string]*account),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.JSONSerializer = jsonSerializer{}
	e.Use(SetTokenInContext())
	if o.serviceName != "" {
		e.Use(sitemonecho.Middleware(o.serviceName))
	}

	api := e.Group(Prefix)
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)
	api.POST("/auth/refresh", s.refreshToken)
	api.POST("/auth/logout", s.logout)
	api.POST("/auth/password/reset-request", s.passwordResetRequest)
	api.POST("/auth/password/reset", s.passwordReset)

	private := api.Group("", RequireToken(s.resolve))
	private.GET("/users/me", s.me)
	private.PUT("/users/me/password", s.changePassword)
	private.POST("/users/me/onboarding", s.completeOnboarding)
	private.GET("/monitors", s.monitors)

	s.e = e
	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// AddUser creates an active account.
func (s *Server) AddUser(email, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password)
}

func (s *Server) addUserLocked(email, password string) models.User {
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		IsActive:  true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	s.accounts[email] = &account{passwordHash: hashPassword(password), user: user}
	return user
}

func hashPassword(password string) []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		// Only passwords longer than 72 bytes fail.
		panic(fmt.Sprintf("hash password: %v", err))
	}
	return hash
}

// validPassword rejects what bcrypt cannot hash.
func validPassword(password string) bool {
	return password != "" && len(password) <= 72
}

func (a *account) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
}

// IssueAccessToken hands out a valid token for email without a login, as a
// token persisted by an earlier process would be.
func (s *Server) IssueAccessToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueAccessLocked(email)
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

func (s *Server) SetRefreshFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFails = fail
}

// SetRefreshDelay holds every refresh answer back for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

func (s *Server) SetLogoutFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutFails = fail
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) LogoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutCalls
}

// AcceptedTokens lists the tokens of successful GET /monitors calls.
func (s *Server) AcceptedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.accepted...)
}

// ResetToken is the token a password reset mail would carry for email.
func ResetToken(email string) string {
	return "reset-" + email
}

func (s *Server) resolve(token string) (string, bool) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !parsed.Valid {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.access[claims.ID]
	return email, ok && email == claims.Email
}

func (s *Server) issueAccessLocked(email string) string {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("sign access token: %v", err))
	}
	s.access[claims.ID] = email
	return token
}

func (s *Server) issueSession(c echo.Context, email string) error {
	s.mu.Lock()
	access := s.issueAccessLocked(email)
	refresh := uuid.NewString()
	s.refresh[refresh] = email
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     Prefix + "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, models.TokenResponse{AccessToken: access, TokenType: "bearer"})
}

func detail(msg string) map[string]interface{} {
	return map[string]interface{}{"detail": msg}
}

func fieldError(field, msg string) map[string]interface{} {
	return map[string]interface{}{"detail": []map[string]interface{}{
		{"loc": []string{"body", field}, "msg": msg, "type": "value_error"},
	}}
}

func (s *Server) login(c echo.Context) error {
	var creds models.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("body", "invalid body"))
	}

	s.mu.Lock()
	acc, ok := s.accounts[creds.Email]
	if !ok || !acc.checkPassword(creds.Password) {
		s.mu.Unlock()
		return c.JSON(http.StatusUnauthorized, detail("invalid email or password"))
	}
	if !acc.user.IsActive {
		s.mu.Unlock()
		return c.JSON(http.StatusUnauthorized, detail("account disabled"))
	}
	now := time.Now().UTC()
	acc.user.LastLoginAt = &now
	s.mu.Unlock()

	return s.issueSession(c, creds.Email)
}

func (s *Server) register(c echo.Context) error {
	var creds models.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("body", "invalid body"))
	}
	if !strings.Contains(creds.Email, "@") {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("email", "value is not a valid email address"))
	}
	if !validPassword(creds.Password) {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("password", "password must be 1 to 72 bytes"))
	}

	s.mu.Lock()
	if _, exists := s.accounts[creds.Email]; exists {
		s.mu.Unlock()
		return c.JSON(http.StatusBadRequest, detail("email already registered"))
	}
	s.addUserLocked(creds.Email, creds.Password)
	s.mu.Unlock()

	return s.issueSession(c, creds.Email)
}

func (s *Server) refreshToken(c echo.Context) error {
	s.mu.Lock()
	s.refreshCalls++
	delay, fails := s.refreshDelay, s.refreshFails
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	cookie, err := c.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, detail("missing refresh token"))
	}
	if fails {
		return c.JSON(http.StatusUnauthorized, detail("invalid refresh token"))
	}

	s.mu.Lock()
	email, ok := s.refresh[cookie.Value]
	if !ok {
		s.mu.Unlock()
		return c.JSON(http.StatusUnauthorized, detail("invalid refresh token"))
	}
	token := s.issueAccessLocked(email)
	s.mu.Unlock()

	return c.JSON(http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) logout(c echo.Context) error {
	s.mu.Lock()
	s.logoutCalls++
	if s.logoutFails {
		s.mu.Unlock()
		return c.JSON(http.StatusInternalServerError, detail("logout unavailable"))
	}
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		delete(s.refresh, cookie.Value)
	}
	s.mu.Unlock()

	c.SetCookie(&http.Cookie{Name: RefreshCookie, Path: Prefix + "/auth", MaxAge: -1})
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "logged out"})
}

func (s *Server) passwordResetRequest(c echo.Context) error {
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "if the address is registered a reset mail was sent"})
}

func (s *Server) passwordReset(c echo.Context) error {
	var req models.PasswordReset
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("body", "invalid body"))
	}
	if !validPassword(req.NewPassword) {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("new_password", "password must be 1 to 72 bytes"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for email, acc := range s.accounts {
		if ResetToken(email) == req.Token {
			acc.passwordHash = hashPassword(req.NewPassword)
			return c.JSON(http.StatusOK, models.MessageResponse{Message: "password reset"})
		}
	}
	return c.JSON(http.StatusBadRequest, detail("invalid or expired reset token"))
}

func (s *Server) me(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[c.Get(EmailKey).(string)]
	if !ok {
		return c.JSON(http.StatusNotFound, detail("user not found"))
	}
	return c.JSON(http.StatusOK, acc.user)
}

func (s *Server) changePassword(c echo.Context) error {
	var req models.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("body", "invalid body"))
	}
	if !validPassword(req.NewPassword) {
		return c.JSON(http.StatusUnprocessableEntity, fieldError("new_password", "password must be 1 to 72 bytes"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[c.Get(EmailKey).(string)]
	if acc == nil || !acc.checkPassword(req.CurrentPassword) {
		return c.JSON(http.StatusBadRequest, detail("current password is incorrect"))
	}
	acc.passwordHash = hashPassword(req.NewPassword)
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "password changed"})
}

func (s *Server) completeOnboarding(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.accounts[c.Get(EmailKey).(string)]; acc != nil {
		acc.user.HasCompletedOnboarding = true
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "onboarding completed"})
}

func (s *Server) monitors(c echo.Context) error {
	token, _ := c.Get(TokenKey).(string)

	s.mu.Lock()
	s.accepted = append(s.accepted, token)
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]interface{}{"items": []interface{}{}, "total": 0})
}
