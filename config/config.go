package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/logging"
	"github.com/linesmerrill/pocket-infra-api/models"
)

// defaultAllowedOrigins mirrors the origins the browser client is served from during local development
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5000",
	"http://localhost:8000",
}

// Config holds the project config values
type Config struct {
	URL               string
	DatabaseName      string
	BaseURL           string
	Port              string
	Env               string
	Emulator          bool
	CloudinaryURL     string
	AllowedOrigins    []string
	TrustedProxyHops  int
	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	SendgridAPIKey    string
	DigestCron        string
	DigestFromEmail   string
	SentryDSN         string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the process environment wins anyway
	_ = godotenv.Load()

	conf := &Config{
		URL:               os.Getenv("DB_URI"),
		DatabaseName:      os.Getenv("DB_NAME"),
		BaseURL:           os.Getenv("BASE_URL"),
		Port:              getenv("PORT", "8080"),
		Env:               getenv("ENV", "local"),
		Emulator:          os.Getenv("EMULATOR") == "true",
		CloudinaryURL:     os.Getenv("CLOUDINARY_URL"),
		AllowedOrigins:    splitList(os.Getenv("ALLOWED_ORIGINS"), defaultAllowedOrigins),
		TrustedProxyHops:  proxyHops(os.Getenv("TRUSTED_PROXY_HOPS")),
		AdminEmail:        strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SendgridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		DigestCron:        getenv("DIGEST_CRON", "0 8 * * *"),
		DigestFromEmail:   getenv("DIGEST_FROM_EMAIL", "no-reply@pocket-infrastructure.web.app"),
		SentryDSN:         os.Getenv("SENTRY_DSN"),
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)
	if err != nil {
		zap.S().Warnw("falling back to example logger", "env", conf.Env, "error", err)
	}

	return conf
}

// AdminEnabled reports whether admin credentials are configured
func (c *Config) AdminEnabled() bool {
	return c.AdminEmail != "" && c.AdminPasswordHash != ""
}

// DigestEnabled reports whether the moderation digest can be delivered
func (c *Config) DigestEnabled() bool {
	return c.SendgridAPIKey != "" && c.AdminEmail != ""
}

func setLogger(env string) (*zap.Logger, error) {
	return logging.New(env)
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err. Server errors keep their detail out of the body
// and are forwarded to sentry.
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	resp := models.ErrorMessageResponse{Error: message}
	if httpStatusCode >= http.StatusInternalServerError {
		zap.S().Errorw(message, "status", httpStatusCode, "error", err)
		if err != nil {
			sentry.CaptureException(err)
		}
	} else {
		zap.S().Debugw(message, "status", httpStatusCode, "error", err)
		if err != nil {
			resp.Details = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string, fallback []string) []string {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// proxyHops parses TRUSTED_PROXY_HOPS. Anything but a positive integer means no proxy is
// trusted and X-Forwarded-For is ignored.
func proxyHops(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
