package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/models"
	"github.com/linesmerrill/pocket-infra-api/services"
)

// Health serves the liveness and client bootstrap endpoints
type Health struct {
	Service *services.ReportService
	Config  *config.Config
}

// HealthCheckHandler reports whether the document store answers a ping
func (h Health) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if err := h.Service.Ping(r.Context()); err != nil {
		zap.S().Errorw("health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.HealthCheckResponse{
			Status:    "unhealthy",
			Error:     err.Error(),
			Timestamp: now,
		})
		return
	}
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: now,
		Emulator:  h.Config.Emulator,
	})
}

// ClientConfigHandler tells the browser which api base url to use
func (h Health) ClientConfigHandler(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(h.Config.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	writeJSON(w, http.StatusOK, models.ClientConfig{
		APIBaseURL: base + "/api",
		Emulator:   h.Config.Emulator,
	})
}
