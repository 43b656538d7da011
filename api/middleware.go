package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/models"
)

const (
	// AdminTokenTTL is how long an issued admin token stays valid
	AdminTokenTTL = 24 * time.Hour
	tokenIssuer   = "pocket-infra-api"
	tokenCacheTTL = time.Hour
	// tokenExpiryExtension carries a bearer token's exp on the cached auth.Info
	tokenExpiryExtension = "token-expires-at"
)

// AdminGuard protects moderation routes. Requests authenticate with basic credentials
// matching the configured admin, or with a bearer token issued by CreateToken.
type AdminGuard struct {
	conf          *config.Config
	authenticator auth.Authenticator
	now           func() time.Time
}

// NewAdminGuard sets up the go-guardian strategies for the configured admin
func NewAdminGuard(conf *config.Config) *AdminGuard {
	g := &AdminGuard{conf: conf, now: time.Now}

	cache := expiringCache{
		Cache: store.NewFIFO(context.Background(), tokenCacheTTL),
		now:   func() time.Time { return g.now() },
	}
	g.authenticator = auth.New()
	g.authenticator.EnableStrategy(basic.StrategyKey, basic.New(g.ValidateAdmin, cache))
	g.authenticator.EnableStrategy(bearer.CachedStrategyKey, bearer.New(g.VerifyToken, cache))

	if !conf.AdminEnabled() {
		zap.S().Warn("ADMIN_EMAIL/ADMIN_PASSWORD_HASH not set, moderation routes are unauthenticated")
	}
	return g
}

// Middleware rejects requests that fail both strategies. It is a pass-through when no
// admin credentials are configured.
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.conf.AdminEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		user, err := g.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Warnw("unauthorized",
				"url", r.URL.String(),
				"error", err)
			writeJSON(w, http.StatusUnauthorized, models.ErrorMessageResponse{Error: "unauthorized"})
			return
		}
		zap.S().Debugw("admin authenticated", "user", user.UserName())
		next.ServeHTTP(w, r)
	})
}

// CreateToken exchanges basic admin credentials for a signed bearer token
func (g *AdminGuard) CreateToken(w http.ResponseWriter, r *http.Request) {
	if !g.conf.AdminEnabled() {
		writeJSON(w, http.StatusNotFound, models.ErrorMessageResponse{Error: "admin access is not configured"})
		return
	}
	email, password, ok := r.BasicAuth()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorMessageResponse{Error: "basic auth required"})
		return
	}
	if _, err := g.ValidateAdmin(r.Context(), r, email, password); err != nil {
		zap.S().Warnw("admin token request rejected", "email", email, "error", err)
		writeJSON(w, http.StatusUnauthorized, models.ErrorMessageResponse{Error: "Invalid credentials"})
		return
	}

	token, expiresAt, err := g.IssueToken(g.conf.AdminEmail)
	if err != nil {
		config.ErrorStatus("token generation failed", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.AdminTokenResponse{Token: token, ExpiresAt: expiresAt})
}

// ValidateAdmin checks basic credentials against the configured admin
func (g *AdminGuard) ValidateAdmin(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if subtle.ConstantTimeCompare([]byte(email), []byte(g.conf.AdminEmail)) != 1 {
		return nil, errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(g.conf.AdminPasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}
	return auth.NewDefaultUser(email, email, []string{"admin"}, nil), nil
}

// IssueToken signs an HS256 token for the admin
func (g *AdminGuard) IssueToken(email string) (string, time.Time, error) {
	if g.conf.JWTSecret == "" {
		return "", time.Time{}, errors.New("JWT_SECRET is not set")
	}
	now := g.now()
	expiresAt := now.Add(AdminTokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.conf.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a bearer token issued by IssueToken
func (g *AdminGuard) VerifyToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	if g.conf.JWTSecret == "" {
		return nil, errors.New("bearer tokens are disabled")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(g.conf.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token, %w", err)
	}
	if claims.Subject != g.conf.AdminEmail {
		return nil, errors.New("token subject is not the admin")
	}
	var extensions map[string][]string
	if claims.ExpiresAt != nil {
		extensions = map[string][]string{
			tokenExpiryExtension: {claims.ExpiresAt.Time.UTC().Format(time.RFC3339Nano)},
		}
	}
	return auth.NewDefaultUser(claims.Subject, claims.Subject, []string{"admin"}, extensions), nil
}

// expiringCache drops a cached bearer decision once the token it came from has expired,
// however long the entry would otherwise live in the cache.
type expiringCache struct {
	store.Cache
	now func() time.Time
}

func (c expiringCache) Load(key string, r *http.Request) (interface{}, bool, error) {
	v, ok, err := c.Cache.Load(key, r)
	if err != nil || !ok {
		return v, ok, err
	}
	info, isInfo := v.(auth.Info)
	if !isInfo {
		return v, ok, nil
	}
	exp := info.Extensions()[tokenExpiryExtension]
	if len(exp) == 0 {
		return v, ok, nil
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, exp[0])
	if err != nil || !c.now().Before(expiresAt) {
		_ = c.Cache.Delete(key, r)
		return nil, false, nil
	}
	return v, ok, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
