package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octabyte/sitemon/models"
)

func do(t *testing.T, h http.Handler, method, path, body string, cookies []*http.Cookie, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, Prefix+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(Authorization, "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRefreshFlow(t *testing.T) {
	srv := New()
	srv.AddUser("ada@example.com", "secret")

	rec := do(t, srv.Handler(), http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"secret"}`, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens models.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RefreshCookie, cookies[0].Name)

	rec = do(t, srv.Handler(), http.MethodGet, "/users/me", "", nil, tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)

	srv.ExpireAccessTokens()
	rec = do(t, srv.Handler(), http.MethodGet, "/users/me", "", nil, tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = do(t, srv.Handler(), http.MethodPost, "/auth/refresh", "", cookies, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed models.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEqual(t, tokens.AccessToken, refreshed.AccessToken)
	assert.Equal(t, 1, srv.RefreshCalls())

	rec = do(t, srv.Handler(), http.MethodGet, "/monitors", "", nil, refreshed.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{refreshed.AccessToken}, srv.AcceptedTokens())
}

func TestLoginRejected(t *testing.T) {
	srv := New()
	srv.AddUser("ada@example.com", "secret")

	rec := do(t, srv.Handler(), http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"nope"}`, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"invalid email or password"}`, rec.Body.String())
}

func TestRegisterValidation(t *testing.T) {
	srv := New()

	rec := do(t, srv.Handler(), http.MethodPost, "/auth/register", `{"email":"not-an-email","password":"x"}`, nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "value is not a valid email address")

	rec = do(t, srv.Handler(), http.MethodPost, "/auth/register", `{"email":"new@example.com","password":"x"}`, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/auth/register", `{"email":"new@example.com","password":"x"}`, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshFailureAndLogout(t *testing.T) {
	srv := New()

	rec := do(t, srv.Handler(), http.MethodPost, "/auth/refresh", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no cookie")

	srv.SetLogoutFailure(true)
	rec = do(t, srv.Handler(), http.MethodPost, "/auth/logout", "", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, srv.LogoutCalls())
}

func TestPasswordReset(t *testing.T) {
	srv := New()
	srv.AddUser("ada@example.com", "old")

	rec := do(t, srv.Handler(), http.MethodPost, "/auth/password/reset", `{"token":"bogus","new_password":"new"}`, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/auth/password/reset", `{"token":"`+ResetToken("ada@example.com")+`","new_password":"new"}`, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"new"}`, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetTokenInContextFromCookie(t *testing.T) {
	srv := New()
	srv.AddUser("ada@example.com", "secret")
	token := srv.IssueAccessToken("ada@example.com")

	rec := do(t, srv.Handler(), http.MethodGet, "/users/me", "", []*http.Cookie{{Name: Authorization, Value: token}}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForeignTokensRejected(t *testing.T) {
	srv := New()
	other := New()
	srv.AddUser("ada@example.com", "secret")
	other.AddUser("ada@example.com", "secret")

	foreign := other.IssueAccessToken("ada@example.com")
	rec := do(t, srv.Handler(), http.MethodGet, "/users/me", "", nil, foreign)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "signed with another secret")

	rec = do(t, srv.Handler(), http.MethodGet, "/users/me", "", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/users/me", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"not authenticated"}`, rec.Body.String())
}
