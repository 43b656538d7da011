package handlers

import (
	"net/http"
	"strconv"

	"github.com/linesmerrill/pocket-infra-api/api"
)

const defaultMetricsLimit = 20

// MetricsHandler serves the in-process request metrics
type MetricsHandler struct {
	Collector *api.MetricsCollector
}

type routeMetricsView struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Count       int64  `json:"count"`
	ErrorCount  int64  `json:"errorCount"`
	AvgTimeMs   int64  `json:"avgTime"`
	MinTimeMs   int64  `json:"minTime"`
	MaxTimeMs   int64  `json:"maxTime"`
	DBTotalMs   int64  `json:"dbTotalTime"`
	LastRequest string `json:"lastRequest"`
}

type traceView struct {
	RequestID  string `json:"requestId"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	StartTime  string `json:"startTime"`
	DurationMs int64  `json:"totalDuration"`
	DBQueries  int    `json:"dbQueries"`
	DBTotalMs  int64  `json:"dbTotalTime"`
	Error      string `json:"error,omitempty"`
}

// MetricsDashboardResponse is the body of the metrics endpoint. Durations are milliseconds.
type MetricsDashboardResponse struct {
	Summary       api.MetricsSummary `json:"summary"`
	SlowestRoutes []routeMetricsView `json:"slowestRoutes"`
	RecentTraces  []traceView        `json:"recentTraces"`
}

// MetricsDashboardHandler returns the summary, the slowest routes and the latest traces
func (m MetricsHandler) MetricsDashboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultMetricsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	routes := m.Collector.GetSlowestRoutes(limit)
	slowest := make([]routeMetricsView, len(routes))
	for i, route := range routes {
		slowest[i] = routeMetricsView{
			Method:      route.Method,
			Path:        route.Path,
			Count:       route.Count,
			ErrorCount:  route.ErrorCount,
			AvgTimeMs:   route.AvgTime.Milliseconds(),
			MinTimeMs:   route.MinTime.Milliseconds(),
			MaxTimeMs:   route.MaxTime.Milliseconds(),
			DBTotalMs:   route.DBTotalTime.Milliseconds(),
			LastRequest: route.LastRequest.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}

	traces := m.Collector.GetTraces(limit)
	recent := make([]traceView, len(traces))
	for i, trace := range traces {
		recent[i] = traceView{
			RequestID:  trace.RequestID,
			Method:     trace.Method,
			Path:       trace.Path,
			Status:     trace.Status,
			StartTime:  trace.StartTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			DurationMs: trace.TotalDuration.Milliseconds(),
			DBQueries:  len(trace.DBQueries),
			DBTotalMs:  trace.DBTotalTime.Milliseconds(),
			Error:      trace.Error,
		}
	}

	writeJSON(w, http.StatusOK, MetricsDashboardResponse{
		Summary:       m.Collector.GetSummary(),
		SlowestRoutes: slowest,
		RecentTraces:  recent,
	})
}
