package api

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// RequestTrace tracks timing for a single request
type RequestTrace struct {
	RequestID     string         `json:"requestId"`
	Method        string         `json:"method"`
	Path          string         `json:"path"`
	Status        int            `json:"status"`
	StartTime     time.Time      `json:"startTime"`
	TotalDuration time.Duration  `json:"totalDuration"`
	DBQueries     []DBQueryTrace `json:"dbQueries"`
	DBTotalTime   time.Duration  `json:"dbTotalTime"`
	Error         string         `json:"error,omitempty"`
}

// DBQueryTrace tracks a single database query
type DBQueryTrace struct {
	Operation  string        `json:"operation"`
	Collection string        `json:"collection"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	DBTotalTime time.Duration `json:"dbTotalTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsSummary is the collector-wide roll up
type MetricsSummary struct {
	TotalRequests  int64     `json:"totalRequests"`
	TotalErrors    int64     `json:"totalErrors"`
	ErrorRate      float64   `json:"errorRate"`
	TotalDBQueries int64     `json:"totalDBQueries"`
	AvgDBTimeMs    int64     `json:"avgDBTimeMs"`
	WindowStart    time.Time `json:"windowStart"`
	RouteCount     int       `json:"routeCount"`
	TraceCount     int       `json:"traceCount"`
}

// MetricsCollector collects and aggregates request metrics
type MetricsCollector struct {
	mu             sync.RWMutex
	traces         []RequestTrace
	maxTraces      int
	routeMetrics   map[string]*RouteMetrics
	windowStart    time.Time
	totalRequests  int64
	totalErrors    int64
	totalDBQueries int64
	totalDBTime    time.Duration
	traceChan      chan RequestTrace
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// NewMetricsCollector returns a collector that keeps at most maxTraces recent traces.
// Call Run to start draining recorded traces.
func NewMetricsCollector(maxTraces int) *MetricsCollector {
	return &MetricsCollector{
		traces:       make([]RequestTrace, 0, maxTraces),
		maxTraces:    maxTraces,
		routeMetrics: make(map[string]*RouteMetrics),
		windowStart:  time.Now(),
		traceChan:    make(chan RequestTrace, 1000),
	}
}

// GetMetrics returns the process wide metrics collector
func GetMetrics() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector(5000)
		go globalMetrics.Run(context.Background())
	})
	return globalMetrics
}

// Run processes recorded traces until ctx is done
func (mc *MetricsCollector) Run(ctx context.Context) {
	for {
		select {
		case trace := <-mc.traceChan:
			mc.processTrace(trace)
		case <-ctx.Done():
			return
		}
	}
}

// RecordTrace queues a trace for processing. It never blocks; when the queue is full
// the trace is dropped.
func (mc *MetricsCollector) RecordTrace(trace RequestTrace) {
	select {
	case mc.traceChan <- trace:
	default:
	}
}

func (mc *MetricsCollector) processTrace(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.traces) >= mc.maxTraces {
		mc.traces = mc.traces[1:]
	}
	mc.traces = append(mc.traces, trace)

	path := normalizeRoutePath(trace.Path)
	routeKey := trace.Method + " " + path

	metrics, exists := mc.routeMetrics[routeKey]
	if !exists {
		metrics = &RouteMetrics{
			Method:  trace.Method,
			Path:    path,
			MinTime: trace.TotalDuration,
		}
		mc.routeMetrics[routeKey] = metrics
	}

	metrics.Count++
	metrics.TotalTime += trace.TotalDuration
	metrics.AvgTime = metrics.TotalTime / time.Duration(metrics.Count)
	metrics.DBTotalTime += trace.DBTotalTime
	metrics.LastRequest = trace.StartTime
	if trace.TotalDuration < metrics.MinTime {
		metrics.MinTime = trace.TotalDuration
	}
	if trace.TotalDuration > metrics.MaxTime {
		metrics.MaxTime = trace.TotalDuration
	}

	if trace.Status >= 400 {
		metrics.ErrorCount++
		mc.totalErrors++
	}
	mc.totalRequests++
	mc.totalDBQueries += int64(len(trace.DBQueries))
	mc.totalDBTime += trace.DBTotalTime
}

// GetTraces returns up to limit of the most recent traces, oldest first
func (mc *MetricsCollector) GetTraces(limit int) []RequestTrace {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	start := len(mc.traces) - limit
	if start < 0 {
		start = 0
	}
	out := make([]RequestTrace, len(mc.traces)-start)
	copy(out, mc.traces[start:])
	return out
}

// GetSlowestRoutes returns the routes ordered by average duration, slowest first
func (mc *MetricsCollector) GetSlowestRoutes(limit int) []RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	routes := make([]RouteMetrics, 0, len(mc.routeMetrics))
	for _, m := range mc.routeMetrics {
		routes = append(routes, *m)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].AvgTime == routes[j].AvgTime {
			return routes[i].Method+routes[i].Path < routes[j].Method+routes[j].Path
		}
		return routes[i].AvgTime > routes[j].AvgTime
	})
	if limit > 0 && limit < len(routes) {
		routes = routes[:limit]
	}
	return routes
}

// GetSummary returns overall summary metrics
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := MetricsSummary{
		TotalRequests:  mc.totalRequests,
		TotalErrors:    mc.totalErrors,
		TotalDBQueries: mc.totalDBQueries,
		WindowStart:    mc.windowStart,
		RouteCount:     len(mc.routeMetrics),
		TraceCount:     len(mc.traces),
	}
	if mc.totalRequests > 0 {
		s.ErrorRate = float64(mc.totalErrors) / float64(mc.totalRequests)
	}
	if mc.totalDBQueries > 0 {
		s.AvgDBTimeMs = (mc.totalDBTime / time.Duration(mc.totalDBQueries)).Milliseconds()
	}
	return s
}

var objectIDSegment = regexp.MustCompile(`/[0-9a-fA-F]{24}(/|$)`)

// normalizeRoutePath replaces report ids so that /reports/<id>/upvote groups as one route
func normalizeRoutePath(path string) string {
	path = objectIDSegment.ReplaceAllString(path, "/{id}$1")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

type requestTraceContextKey struct{}

type requestTraceContext struct {
	trace *RequestTrace
	mu    sync.Mutex
}

// WithRequestTrace adds request trace to context
func WithRequestTrace(ctx context.Context, trace *RequestTrace) context.Context {
	return context.WithValue(ctx, requestTraceContextKey{}, &requestTraceContext{trace: trace})
}

// RecordDBQueryFromContext records a DB query against the trace carried by ctx, if any
func RecordDBQueryFromContext(ctx context.Context, operation, collection string, duration time.Duration, err error) {
	reqTrace, ok := ctx.Value(requestTraceContextKey{}).(*requestTraceContext)
	if !ok || reqTrace.trace == nil {
		return
	}

	q := DBQueryTrace{
		Operation:  operation,
		Collection: collection,
		Duration:   duration,
		Timestamp:  time.Now(),
	}
	if err != nil {
		q.Error = err.Error()
	}
	reqTrace.mu.Lock()
	reqTrace.trace.DBQueries = append(reqTrace.trace.DBQueries, q)
	reqTrace.trace.DBTotalTime += duration
	reqTrace.mu.Unlock()
}
