package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/handlers"
)

// RequestIDHeader carries the request correlation id in both directions
const RequestIDHeader = "X-Request-ID"

// withMiddleware wraps the router. The websocket upgrade gets CORS headers only.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	full := s.loggingMiddleware(s.corsMiddleware(s.recoveryMiddleware(handler)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			setCORSHeaders(w)
			handler.ServeHTTP(w, r)
			return
		}
		full.ServeHTTP(w, r)
	})
}

// correlationID returns the job id for /api/jobs/{id} routes so request logs
// line up with the orchestrator's per-job logs. Other requests keep the
// caller's X-Request-ID or get a fresh one.
func correlationID(r *http.Request) string {
	if jobID := jobIDFromPath(r.URL.Path); jobID != "" {
		return jobID
	}
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	return common.NewCorrelationID("req")
}

func jobIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/jobs/")
	if !ok {
		return ""
	}
	jobID, _, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	return jobID
}

// loggingMiddleware logs each request under its correlation id. Job runs and
// sweeps change state and log at info; reads log at debug.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := correlationID(r)
		w.Header().Set(RequestIDHeader, id)

		logger := s.app.Logger.WithCorrelationId(id)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		event := requestLogEvent(logger, r, rw.statusCode).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start))
		if r.URL.RawQuery != "" {
			event = event.Str("query", r.URL.RawQuery)
		}
		event.Msg("HTTP request")
	})
}

func requestLogEvent(logger arbor.ILogger, r *http.Request, status int) arbor.ILogEvent {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Warn()
	case r.Method == http.MethodPost:
		return logger.Info()
	default:
		return logger.Debug()
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
	w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
}

// corsMiddleware lets browser dashboards poll job status
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns a handler panic into a 500 and logs the stack
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.app.Logger.WithCorrelationId(w.Header().Get(RequestIDHeader)).Error().
					Str("panic", fmt.Sprintf("%v", err)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("stack", common.GetStackTrace()).
					Msg("Panic recovered in HTTP handler")

				handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// run and sweep handlers use to lift the write deadline
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("responseWriter does not implement http.Hijacker")
}
