// Package web is the HTTP interface of the gradebook: the passwordless login
// pages and the protected course info pages.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/icza/linkauthn"
	"github.com/icza/linkauthn/internal/gradebook"
	"github.com/icza/linkauthn/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options holds the dependencies of a Server.
type Options struct {
	Auth     *linkauthn.Authenticator
	Sessions *linkauthn.SessionManager
	Courses  gradebook.Store
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics

	// Gatherer, if set, is exposed at /metrics.
	Gatherer prometheus.Gatherer

	// Checks are run by the readiness probe.
	Checks []Check

	// SecureCookie sets the Secure flag of the session cookie.
	SecureCookie bool
}

// Server serves the gradebook HTTP interface.
type Server struct {
	auth     *linkauthn.Authenticator
	sessions *linkauthn.SessionManager
	gate     *linkauthn.AccessGate
	courses  gradebook.Store
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	health   *HealthChecker

	secureCookie bool
	templates    *template.Template
	handler      http.Handler
}

// NewServer creates a new Server.
// This function panics if Auth, Sessions, Courses, Logger or Metrics is nil.
func NewServer(opts Options) *Server {
	switch {
	case opts.Auth == nil:
		panic("auth must be provided")
	case opts.Sessions == nil:
		panic("sessions must be provided")
	case opts.Courses == nil:
		panic("courses must be provided")
	case opts.Logger == nil:
		panic("logger must be provided")
	case opts.Metrics == nil:
		panic("metrics must be provided")
	}

	s := &Server{
		auth:         opts.Auth,
		sessions:     opts.Sessions,
		gate:         linkauthn.NewAccessGate(opts.Sessions),
		courses:      opts.Courses,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		health:       NewHealthChecker(opts.Checks...),
		secureCookie: opts.SecureCookie,
		templates:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}

	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(linkauthn.RedeemPath, s.handleRedeem).Methods(http.MethodGet)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	protected := r.PathPrefix("/courseinfo").Subrouter()
	protected.Use(s.gate.Middleware(s.denyAccess), s.allowAccess)
	protected.HandleFunc("/mylist", s.handleMyList).Methods(http.MethodGet)
	protected.HandleFunc("/getscore", s.handleGetScore).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer)).Methods(http.MethodGet)
	}

	s.handler = Chain(r,
		WithRequestID,
		WithAccessLog(s.logger),
		WithRecover(s.logger),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// render executes the named template and writes it with the given status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	buf := &bytes.Buffer{}
	if err := s.templates.ExecuteTemplate(buf, name, data); err != nil {
		s.log(r).WithError(err).WithField("template", name).Error("Failed to render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// log returns a log entry carrying the request ID.
func (s *Server) log(r *http.Request) *logrus.Entry {
	return s.logger.WithField("request_id", RequestIDFromContext(r.Context()))
}
