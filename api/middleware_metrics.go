package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlowRequestThreshold is the duration above which a request is logged as slow
const SlowRequestThreshold = time.Second

// MetricsMiddleware tracks request timing and metrics
func MetricsMiddleware(collector *MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			trace := &RequestTrace{
				RequestID: uuid.New().String(),
				Method:    r.Method,
				Path:      path,
				StartTime: time.Now(),
				DBQueries: make([]DBQueryTrace, 0),
			}
			r = r.WithContext(WithRequestTrace(r.Context(), trace))
			w.Header().Set("X-Request-Id", trace.RequestID)

			wrappedWriter := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrappedWriter, r)

			trace.TotalDuration = time.Since(trace.StartTime)
			trace.Status = wrappedWriter.statusCode
			if wrappedWriter.statusCode >= 400 {
				trace.Error = http.StatusText(wrappedWriter.statusCode)
			}
			collector.RecordTrace(*trace)

			if trace.TotalDuration > SlowRequestThreshold {
				zap.S().Warnw("Slow request detected",
					"requestId", trace.RequestID,
					"method", r.Method,
					"path", path,
					"duration", trace.TotalDuration,
					"status", wrappedWriter.statusCode,
					"dbQueries", len(trace.DBQueries),
					"dbTime", trace.DBTotalTime,
				)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
// It implements http.Hijacker to support WebSocket upgrades
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
