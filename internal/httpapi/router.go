package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/lukasbauer/scribe/internal/eventlog"
	"github.com/lukasbauer/scribe/internal/session"
	"github.com/lukasbauer/scribe/internal/templates"
)

type RouterConfig struct {
	// JWT Authentication (disabled when empty)
	JWTSecret string

	// Directory that JSON {path} audio references resolve against.
	// Path references are rejected when empty.
	AudioDir string

	// Upper bound for an uploaded audio part
	MaxUploadBytes int64

	// Stored session events (history always empty when nil)
	Events EventHistory
}

// EventHistory reads back recorded session events. *eventlog.Logger implements it.
type EventHistory interface {
	List(ctx context.Context, sessionID string) ([]eventlog.Event, error)
}

// Sessions is the session store as seen by the HTTP layer.
type Sessions interface {
	Start(ctx context.Context, p session.StartParams) (session.Session, error)
	AddPart(ctx context.Context, src session.Source) (session.AudioPart, error)
	CurrentTranscript() (string, error)
	Summary(ctx context.Context) (string, error)
	End(ctx context.Context) (session.Result, error)
	Status() session.Status
	Templates() *templates.Catalog
	PutTemplate(t templates.Template) (bool, error)
	DeleteTemplate(id string) error
}

// Readiness reports whether model providers are warm.
type Readiness interface {
	Ready() bool
	Err() error
	Pending() []string
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	sessions Sessions
	ready    Readiness
	inflight *InFlight
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, sessions Sessions, ready Readiness, inflight *InFlight) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if inflight == nil {
		inflight = NewInFlight()
	}

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		ready:    ready,
		inflight: inflight,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(withRequestID(r.withRequestLog(r.mux))))
}

func (r *Router) routes() {
	// Health checks
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Session lifecycle
	r.mux.HandleFunc("POST /startSession", r.withAuth(r.withSession(r.handleStartSession)))
	r.mux.HandleFunc("POST /addAudio", r.withAuth(r.withSession(r.handleAddAudio)))
	r.mux.HandleFunc("POST /endSession", r.withAuth(r.withSession(r.handleEndSession)))
	r.mux.HandleFunc("GET /pastMainText", r.withAuth(r.withSession(r.handlePastMainText)))
	r.mux.HandleFunc("GET /summary", r.withAuth(r.withSession(r.handleSummary)))
	r.mux.HandleFunc("GET /session", r.withAuth(r.handleSessionStatus))
	r.mux.HandleFunc("GET /sessions/{id}/events", r.withAuth(r.handleSessionEvents))

	// Templates
	r.mux.HandleFunc("GET /templates", r.withAuth(r.handleListTemplates))
	r.mux.HandleFunc("POST /templates", r.withAuth(r.handlePutTemplate))
	r.mux.HandleFunc("DELETE /templates/{id}", r.withAuth(r.handleDeleteTemplate))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.inflight.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	if r.ready != nil && !r.ready.Ready() {
		msg := "warming up"
		if pending := r.ready.Pending(); len(pending) > 0 {
			msg += ": " + strings.Join(pending, ", ")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(msg))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withSession rejects session traffic while models are cold or the server is
// draining, and tracks accepted requests so shutdown can wait for them.
func (r *Router) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.ready != nil && !r.ready.Ready() {
			msg := "models are warming up"
			if err := r.ready.Err(); err != nil {
				msg += ": " + err.Error()
			}
			writeError(w, http.StatusServiceUnavailable, KindNotReady, msg)
			return
		}
		if !r.inflight.Add() {
			writeError(w, http.StatusServiceUnavailable, KindDraining, "server is shutting down")
			return
		}
		defer r.inflight.Done()
		next(w, req)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				writeError(w, http.StatusInternalServerError, KindInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

const requestIDHeader = "X-Request-ID"

// withRequestID propagates the caller's X-Request-ID or assigns a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
			req.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, req)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// withRequestLog logs every non-health request with its status and duration.
func (r *Router) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/healthz" || req.URL.Path == "/readyz" {
			next.ServeHTTP(w, req)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)
		r.logger.Printf("http: %s %s -> %d (%dms, id=%s)",
			req.Method, req.URL.Path, sw.status, time.Since(start).Milliseconds(), req.Header.Get(requestIDHeader))
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetTag("request_id", req.Header.Get(requestIDHeader))
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
