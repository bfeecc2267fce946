// Package http serves the back office: dashboard panels, the financing
// simulator, saved quotes and the report snapshot API the dashboards read.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"concesionario/internal/dashboard"
	applog "concesionario/internal/log"
	"concesionario/internal/middleware/ratelimit"
	"concesionario/internal/middleware/security"
	"concesionario/internal/middleware/trace"
	"concesionario/internal/services"
	ports "concesionario/internal/sheets"
	appweb "concesionario/web"
)

const (
	staticMaxAge  = 3600
	readyzTimeout = 2 * time.Second
)

// ReportStore backs the /api/{kind} snapshot endpoints.
type ReportStore interface {
	ports.ReportReader
	ports.ReportWriter
}

// Pinger reports the health of a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Any of them may be nil, in which
// case the routes that need it answer 404.
type Deps struct {
	Board   *dashboard.Board
	Quotes  *services.QuoteService
	Reports ReportStore
	Health  Pinger
	Logger  *applog.Logger

	// RequestsPerMinute limits POST and PUT per client IP. Zero uses the limiter default.
	RequestsPerMinute int
}

// Server is the HTTP front end.
type Server struct {
	http.Server
	templates *template.Template

	board   *dashboard.Board
	quotes  *services.QuoteService
	reports ReportStore
	health  Pinger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *applog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		board:    deps.Board,
		quotes:   deps.Quotes,
		reports:  deps.Reports,
		health:   deps.Health,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		logger:   logger,
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServerFS(sub))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /ui/dashboards/{kind}", s.handlePanel)
	mux.HandleFunc("POST /ui/dashboards/{kind}/refresh", s.handlePanelRefresh)
	mux.HandleFunc("POST /ui/simulador", s.handleSimulatorForm)
	mux.HandleFunc("GET /ui/cotizaciones/{id}", s.handleQuotePage)

	mux.HandleFunc("POST /api/simulador", s.handleSimulate)
	mux.HandleFunc("POST /api/cotizaciones", s.handleCreateQuote)
	mux.HandleFunc("GET /api/cotizaciones/{id}", s.handleGetQuote)
	mux.HandleFunc("GET /api/{kind}", s.handleGetReport)
	mux.HandleFunc("PUT /api/{kind}", s.handlePutReport)

	limited := s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimit, http.MethodPost, http.MethodPut)(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(detector.Middleware(limited))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Demasiadas solicitudes. Intente de nuevo en un minuto.").Write(w)
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// limiter's cleanup goroutine. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		s.limiter.Stop()

		tm := s.tracer.GetMetrics()
		rm := s.limiter.GetMetrics()
		dm := s.detector.GetMetrics()
		s.logger.Info("HTTP server stopped",
			"requests", tm.TotalRequests,
			"failed_requests", tm.FailedRequests,
			"avg_response_us", tm.AverageResponseTime,
			"rate_limited", rm.TotalHits,
			"suspicious_requests", dm.SuspiciousRequests,
			"invalid_forwarded_ips", dm.InvalidIPAttempts)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady fails until templates parsed, storage answers and every
// dashboard panel has settled at least once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	unready := func(reason string) {
		http.Error(w, reason, http.StatusServiceUnavailable)
	}
	if s.templates == nil {
		unready("templates not loaded")
		return
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(ctx, "Readiness ping failed", applog.FieldError, err)
			unready("storage unavailable")
			return
		}
	}
	if s.board != nil && !s.board.Ready() {
		unready("dashboards loading")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
