package api

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/models"
)

// NotFoundHandler answers unmatched routes with a JSON body
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorMessageResponse{Error: "Endpoint not found"})
	})
}

// RecoveryMiddleware turns a handler panic into a 500 and reports it
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zap.S().Errorw("panic serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				sentry.CurrentHub().Recover(rec)
				writeJSON(w, http.StatusInternalServerError, models.ErrorMessageResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS allows the configured browser origins
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
		handlers.AllowCredentials(),
	)
}

// RealIP rewrites RemoteAddr to the client address recorded by the trusted proxies in
// front of the app. Each proxy appends the address it received the request from, so with
// hops trusted proxies the client is the hops-th X-Forwarded-For entry from the right.
// Entries further left are client supplied and never used. With hops == 0 the header is
// ignored and RemoteAddr is the socket peer.
func RealIP(hops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hops <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedFor(r, hops); ip != "" {
				r.RemoteAddr = net.JoinHostPort(ip, "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedFor(r *http.Request, hops int) string {
	var entries []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, e := range strings.Split(v, ",") {
			entries = append(entries, strings.TrimSpace(e))
		}
	}
	if len(entries) < hops {
		return ""
	}
	ip := net.ParseIP(entries[len(entries)-hops])
	if ip == nil {
		return ""
	}
	return ip.String()
}
