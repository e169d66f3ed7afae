// Package web serves the verification dashboard over HTTP.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trusthire/trusthire/internal/enrichment"
	"github.com/trusthire/trusthire/internal/logger"
	"github.com/trusthire/trusthire/internal/metrics"
	"github.com/trusthire/trusthire/internal/result"
	"github.com/trusthire/trusthire/internal/trusthire"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 10 * time.Second
	healthCheckTimeout      = 5 * time.Second
	multipartOverhead       = 1 << 20
)

//go:embed templates/*.html
var templatesFS embed.FS

// Verifier submits résumés to the verification service.
type Verifier interface {
	SubmitVerification(ctx context.Context, req *trusthire.VerificationRequest) (*result.View, error)
	Health(ctx context.Context) error
}

type Server struct {
	verifier   Verifier
	controller *enrichment.Controller
	limits     trusthire.UploadLimits
	logger     *zap.Logger
	registry   *prometheus.Registry
	templates  *template.Template
	router     chi.Router
}

// NewServer wires the dashboard routes. Every collector of rec is registered
// on a private registry served at /metrics.
func NewServer(verifier Verifier, controller *enrichment.Controller, limits trusthire.UploadLimits, rec *metrics.Recorder, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"percent": result.FormatPercentage,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewMiddleware()
	for _, c := range append(httpMetrics.Collectors(), collectors.NewGoCollector()) {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	if err := rec.Register(registry); err != nil {
		return nil, err
	}

	s := &Server{
		verifier:   verifier,
		controller: controller,
		limits:     limits,
		logger:     log.Named("web"),
		registry:   registry,
		templates:  tmpl,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(httpMetrics.Handler)
	router.Use(s.requestLogger)

	router.Get("/", s.dashboard)
	router.Post("/verify", s.verify)
	router.Get("/api/v1/state", s.state)
	router.Get("/healthz", s.health)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		s.logger.Info("dashboard server terminated")
	}()

	s.logger.Info("serving dashboard", zap.String("address", listener.Addr().String()))
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type page struct {
	State     enrichment.Snapshot
	FormError string
	Identity  string
	Accept    string
	Refresh   bool
}

func (s *Server) dashboard(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, http.StatusOK, page{State: s.controller.Snapshot()})
}

func (s *Server) renderPage(w http.ResponseWriter, status int, p page) {
	p.Accept = strings.Join(s.limits.Extensions, ",")
	p.Refresh = p.State.Status == enrichment.StatusLoading

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", p); err != nil {
		s.logger.Error("rendering dashboard", zap.Error(err))
	}
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxSize+multipartOverhead)
	}

	req, err := readSubmission(r)
	if err != nil {
		s.renderPage(w, http.StatusBadRequest, page{
			State:     s.controller.Snapshot(),
			FormError: err.Error(),
		})
		return
	}

	view, err := s.verifier.SubmitVerification(r.Context(), req)
	switch {
	case err == nil:
		snap := s.controller.Publish(view)
		s.logger.Info("verification published",
			zap.String(logger.FieldTag, snap.Tag),
			zap.Float64("trust_score", view.TrustScore),
			zap.String("risk_level", view.RiskLevel),
		)
	case trusthire.IsValidation(err):
		// nothing was sent, the current result stays on screen
		s.renderPage(w, http.StatusUnprocessableEntity, page{
			State:     s.controller.Snapshot(),
			FormError: err.Error(),
			Identity:  req.Identity,
		})
		return
	default:
		s.logger.Warn("verification failed", zap.Error(err))
		s.controller.Reject(err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func readSubmission(r *http.Request) (*trusthire.VerificationRequest, error) {
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errors.New("uploaded file is too large")
		}
		return nil, errors.New("invalid form submission")
	}

	req := &trusthire.VerificationRequest{
		Identity: strings.TrimSpace(r.FormValue("github_username")),
	}

	file, header, err := r.FormFile("resume")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return nil, errors.New("invalid résumé upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("invalid résumé upload")
	}
	req.ResumeName = header.Filename
	req.Resume = data

	return req, nil
}

// StateReply is the JSON form of the dashboard state.
type StateReply struct {
	enrichment.Snapshot
}

func (StateReply) Render(http.ResponseWriter, *http.Request) error {
	return nil
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, StateReply{Snapshot: s.controller.Snapshot()})
}

type HealthReply struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream,omitempty"`
}

func (HealthReply) Render(http.ResponseWriter, *http.Request) error {
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.verifier.Health(ctx); err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		_ = render.Render(w, r, HealthReply{Status: "degraded", Upstream: err.Error()})
		return
	}
	_ = render.Render(w, r, HealthReply{Status: "ok"})
}
