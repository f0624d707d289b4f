package api

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture"
	"github.com/banshee-data/posture.report/internal/results"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes sessions held in a results.Store over HTTP.
type Server struct {
	store    *results.Store
	db       *db.DB
	defaults *config.TuningConfig
}

// NewServer creates a server. database may be nil, in which case stored
// report listing is unavailable. defaults is the tuning every new session
// starts from; a nil value uses the built-in defaults.
func NewServer(store *results.Store, database *db.DB, defaults *config.TuningConfig) *Server {
	if defaults == nil {
		defaults = config.EmptyTuningConfig()
	}
	return &Server{store: store, db: database, defaults: defaults}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack hands the connection to the websocket upgrader.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.sessionInfo)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/frames", s.ingestFrames)
	mux.HandleFunc("GET /api/sessions/{id}/stream", s.stream)
	mux.HandleFunc("POST /api/sessions/{id}/finalize", s.finalize)
	mux.HandleFunc("GET /api/sessions/{id}/report", s.report)
	mux.HandleFunc("GET /api/sessions/{id}/timeline", s.timeline)
	mux.HandleFunc("GET /api/reports", s.listReports)
	mux.HandleFunc("POST /analysis/action", s.analyzeAction)
	return mux
}

// writeError maps store and session errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, results.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, results.ErrInFlight), errors.Is(err, posture.ErrFinalized):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, posture.ErrInvalidConfig),
		errors.Is(err, posture.ErrInvalidFrame),
		errors.Is(err, posture.ErrOutOfOrder),
		errors.Is(err, posture.ErrDuplicateFrame):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
