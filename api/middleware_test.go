package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/models"
)

func adminConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAdminGuard_DisabledPassesThrough(t *testing.T) {
	g := NewAdminGuard(&config.Config{})
	rr := httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/reports", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminGuard_MissingCredentials(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))
	rr := httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/reports", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body.Error)
}

func TestAdminGuard_BasicAuth(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
	req.SetBasicAuth("Admin@Example.com", "s3cret-pass")
	rr := httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
	req.SetBasicAuth("admin@example.com", "wrong")
	rr = httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminGuard_TokenRoundTrip(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/admin/token", nil)
	req.SetBasicAuth("admin@example.com", "s3cret-pass")
	rr := httptest.NewRecorder()
	g.CreateToken(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var tok models.AdminTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	assert.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().Add(AdminTokenTTL), tok.ExpiresAt, time.Minute)

	req = httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rr = httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminGuard_CachedTokenExpires(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return issuedAt }

	token, _, err := g.IssueToken("admin@example.com")
	require.NoError(t, err)

	authorized := func() int {
		req := httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		g.Middleware(okHandler).ServeHTTP(rr, req)
		return rr.Code
	}

	// first use caches the decision for far longer than the token has left
	g.now = func() time.Time { return issuedAt.Add(AdminTokenTTL - time.Minute) }
	assert.Equal(t, http.StatusOK, authorized())

	g.now = func() time.Time { return issuedAt.Add(AdminTokenTTL + time.Second) }
	assert.Equal(t, http.StatusUnauthorized, authorized())
}

func TestAdminGuard_CreateTokenRejectsBadCredentials(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))

	rr := httptest.NewRecorder()
	g.CreateToken(rr, httptest.NewRequest(http.MethodPost, "/admin/token", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/token", nil)
	req.SetBasicAuth("someone@example.com", "s3cret-pass")
	rr = httptest.NewRecorder()
	g.CreateToken(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminGuard_CreateTokenWithoutSecret(t *testing.T) {
	conf := adminConfig(t)
	conf.JWTSecret = ""
	g := NewAdminGuard(conf)

	req := httptest.NewRequest(http.MethodPost, "/admin/token", nil)
	req.SetBasicAuth("admin@example.com", "s3cret-pass")
	rr := httptest.NewRecorder()
	g.CreateToken(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"token generation failed"}`, rr.Body.String())
}

func TestAdminGuard_CreateTokenDisabled(t *testing.T) {
	g := NewAdminGuard(&config.Config{})
	rr := httptest.NewRecorder()
	g.CreateToken(rr, httptest.NewRequest(http.MethodPost, "/admin/token", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminGuard_VerifyToken(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return issuedAt }

	token, _, err := g.IssueToken("admin@example.com")
	require.NoError(t, err)

	info, err := g.VerifyToken(context.Background(), nil, token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", info.UserName())

	g.now = func() time.Time { return issuedAt.Add(AdminTokenTTL + time.Minute) }
	_, err = g.VerifyToken(context.Background(), nil, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAdminGuard_VerifyTokenRejectsForeignTokens(t *testing.T) {
	g := NewAdminGuard(adminConfig(t))

	other, _, err := (&AdminGuard{conf: &config.Config{JWTSecret: "other"}, now: time.Now}).IssueToken("admin@example.com")
	require.NoError(t, err)
	_, err = g.VerifyToken(context.Background(), nil, other)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	wrongSubject, _, err := g.IssueToken("intruder@example.com")
	require.NoError(t, err)
	_, err = g.VerifyToken(context.Background(), nil, wrongSubject)
	assert.EqualError(t, err, "token subject is not the admin")

	_, err = g.VerifyToken(context.Background(), nil, "asdfasdf")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}
