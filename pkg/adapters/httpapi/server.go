// Package httpapi exposes the journey controller as a JSON REST API for
// the presentation layer (web/mobile consent screens).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kitewire/consentflow/internal/logging"
	"github.com/kitewire/consentflow/pkg/domain"
)

// Journey defines the controller surface the API drives.
type Journey interface {
	StartJourney(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)
	SubmitCredentials(ctx context.Context, consentHandleID, username, mobile string) (*domain.JourneySession, error)
	VerifyLoginOTP(ctx context.Context, consentHandleID, code string) (*domain.JourneySession, error)
	ResendOTP(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)
	SelectInstitution(ctx context.Context, consentHandleID, fipID string) (*domain.JourneySession, error)
	DiscoverAccounts(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)
	SelectAccountsAndLink(ctx context.Context, consentHandleID string, accountRefs []string) (*domain.JourneySession, error)
	VerifyLinkingOTP(ctx context.Context, consentHandleID, code string) (*domain.JourneySession, error)
	SelectConsentAccounts(ctx context.Context, consentHandleID string, accountRefs []string) (*domain.JourneySession, error)
	ApproveConsent(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)
	DenyConsent(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)
	ExitJourney(ctx context.Context, consentHandleID string) error
	Session(ctx context.Context, consentHandleID string) (*domain.JourneySession, error)
}

// Server routes journey intents to the controller.
type Server struct {
	journeys Journey
	logger   *slog.Logger
	registry *prometheus.Registry
}

// Option defines a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsRegistry exposes the given registry on GET /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewHandler builds the HTTP handler for the journey API.
func NewHandler(journeys Journey, opts ...Option) http.Handler {
	s := &Server{
		journeys: journeys,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/journeys", func(r chi.Router) {
		r.Post("/", s.start)
		r.Route("/{handleID}", func(r chi.Router) {
			r.Get("/", s.session)
			r.Delete("/", s.exit)
			r.Post("/credentials", s.credentials)
			r.Post("/login-otp", s.loginOTP)
			r.Post("/otp-resend", s.resend)
			r.Post("/institution", s.institution)
			r.Post("/discovery", s.discovery)
			r.Post("/link", s.link)
			r.Post("/link-otp", s.linkOTP)
			r.Post("/consent-accounts", s.consentAccounts)
			r.Post("/approve", s.approve)
			r.Post("/deny", s.deny)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConsentHandleID string `json:"consent_handle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ConsentHandleID == "" {
		s.badRequest(w, "consent_handle_id is required", err)
		return
	}
	s.respond(w, r, http.StatusCreated)(s.journeys.StartJourney(r.Context(), body.ConsentHandleID))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK)(s.journeys.Session(r.Context(), handleID(r)))
}

func (s *Server) exit(w http.ResponseWriter, r *http.Request) {
	if err := s.journeys.ExitJourney(r.Context(), handleID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) credentials(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Mobile   string `json:"mobile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.respond(w, r, http.StatusOK)(s.journeys.SubmitCredentials(r.Context(), handleID(r), body.Username, body.Mobile))
}

func (s *Server) loginOTP(w http.ResponseWriter, r *http.Request) {
	code, err := otpBody(r)
	if err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.respond(w, r, http.StatusOK)(s.journeys.VerifyLoginOTP(r.Context(), handleID(r), code))
}

func (s *Server) resend(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK)(s.journeys.ResendOTP(r.Context(), handleID(r)))
}

func (s *Server) institution(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FIPID string `json:"fip_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.respond(w, r, http.StatusOK)(s.journeys.SelectInstitution(r.Context(), handleID(r), body.FIPID))
}

func (s *Server) discovery(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK)(s.journeys.DiscoverAccounts(r.Context(), handleID(r)))
}

func (s *Server) link(w http.ResponseWriter, r *http.Request) {
	refs, err := refsBody(r)
	if err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.respond(w, r, http.StatusOK)(s.journeys.SelectAccountsAndLink(r.Context(), handleID(r), refs))
}

func (s *Server) linkOTP(w http.ResponseWriter, r *http.Request) {
	code, err := otpBody(r)
	if err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.respond(w, r, http.StatusOK)(s.journeys.VerifyLinkingOTP(r.Context(), handleID(r), code))
}

func (s *Server) consentAccounts(w http.ResponseWriter, r *http.Request) {
	refs, err := refsBody(r)
	if err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	s.respond(w, r, http.StatusOK)(s.journeys.SelectConsentAccounts(r.Context(), handleID(r), refs))
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK)(s.journeys.ApproveConsent(r.Context(), handleID(r)))
}

func (s *Server) deny(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK)(s.journeys.DenyConsent(r.Context(), handleID(r)))
}

// respond writes the session snapshot or maps the controller error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int) func(*domain.JourneySession, error) {
	return func(session *domain.JourneySession, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, status, toDTO(session))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrJourneyCompleted):
		status = http.StatusGone
	case errors.Is(err, domain.ErrInvalidStage):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("journey request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, message string, err error) {
	s.logger.Warn("rejected request body", "reason", message, "err", err)
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func handleID(r *http.Request) string {
	return chi.URLParam(r, "handleID")
}

func otpBody(r *http.Request) (string, error) {
	var body struct {
		OTP string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.OTP, nil
}

func refsBody(r *http.Request) ([]string, error) {
	var body struct {
		AccountRefs []string `json:"account_refs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.AccountRefs, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
