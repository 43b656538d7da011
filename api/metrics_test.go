package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoutePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/reports", "/reports"},
		{"/reports/", "/reports"},
		{"/reports/665f1c2ab4d1e0a1b2c3d4e5", "/reports/{id}"},
		{"/api/reports/665f1c2ab4d1e0a1b2c3d4e5/upvote", "/api/reports/{id}/upvote"},
		{"/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRoutePath(tt.in), tt.in)
	}
}

func TestMetricsCollector_ProcessTrace(t *testing.T) {
	mc := NewMetricsCollector(2)
	start := time.Now()

	mc.processTrace(RequestTrace{Method: "GET", Path: "/reports", Status: 200, StartTime: start, TotalDuration: 10 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Path: "/reports/665f1c2ab4d1e0a1b2c3d4e5", Status: 404, StartTime: start, TotalDuration: 30 * time.Millisecond,
		DBQueries: []DBQueryTrace{{Operation: "findOne"}}, DBTotalTime: 4 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Path: "/reports", Status: 200, StartTime: start, TotalDuration: 20 * time.Millisecond})

	assert.Len(t, mc.GetTraces(10), 2, "oldest trace is evicted")

	routes := mc.GetSlowestRoutes(0)
	assert.Len(t, routes, 2)
	assert.Equal(t, "/reports/{id}", routes[0].Path)
	assert.Equal(t, int64(2), routes[1].Count)
	assert.Equal(t, 15*time.Millisecond, routes[1].AvgTime)
	assert.Equal(t, 10*time.Millisecond, routes[1].MinTime)

	s := mc.GetSummary()
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.InDelta(t, 1.0/3.0, s.ErrorRate, 0.0001)
	assert.Equal(t, int64(1), s.TotalDBQueries)
	assert.Equal(t, int64(4), s.AvgDBTimeMs)
}

func TestRecordDBQueryFromContext(t *testing.T) {
	trace := &RequestTrace{}
	ctx := WithRequestTrace(context.Background(), trace)

	RecordDBQueryFromContext(ctx, "find", "reports", 5*time.Millisecond, nil)
	RecordDBQueryFromContext(ctx, "updateOne", "reports", 3*time.Millisecond, errors.New("write conflict"))
	RecordDBQueryFromContext(context.Background(), "find", "reports", time.Second, nil)

	assert.Len(t, trace.DBQueries, 2)
	assert.Equal(t, 8*time.Millisecond, trace.DBTotalTime)
	assert.Equal(t, "write conflict", trace.DBQueries[1].Error)
}

func TestMetricsMiddleware(t *testing.T) {
	mc := NewMetricsCollector(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mc.Run(ctx)

	h := MetricsMiddleware(mc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RecordDBQueryFromContext(r.Context(), "find", "reports", time.Millisecond, nil)
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reports", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, rr.Header().Get("X-Request-Id"))

	assert.Eventually(t, func() bool {
		return mc.GetSummary().TotalRequests == 1
	}, time.Second, 10*time.Millisecond)
	traces := mc.GetTraces(1)
	assert.Equal(t, http.StatusCreated, traces[0].Status)
	assert.Len(t, traces[0].DBQueries, 1)
}

func TestTimeoutMiddleware(t *testing.T) {
	h := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Request timeout")
}

func TestWithQueryTimeout(t *testing.T) {
	ctx, cancel := WithQueryTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(QueryTimeout), deadline, time.Second)
}
