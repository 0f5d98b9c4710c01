package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

type Server struct {
	router      *chi.Mux
	integration IntegrationUseCase
	report      ReportUseCase
	apiToken    string

	slackSigningSecret string
}

type Options func(*Server)

// WithSlackEvents enables the Slack Events API endpoint at /hooks/slack/event
func WithSlackEvents(signingSecret string) Options {
	return func(s *Server) {
		s.slackSigningSecret = signingSecret
	}
}

// WithAPIToken requires "Authorization: Bearer <token>" on every API call
func WithAPIToken(token string) Options {
	return func(s *Server) {
		s.apiToken = token
	}
}

func New(integration IntegrationUseCase, report ReportUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:      r,
		integration: integration,
		report:      report,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if s.slackSigningSecret != "" {
		r.With(slackSignatureMiddleware(s.slackSigningSecret)).Post("/hooks/slack/event", s.handleSlackEvent)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requestLogger)
		if s.apiToken != "" {
			r.Use(tokenMiddleware(s.apiToken))
		}

		r.Get("/integrations", s.listIntegrations)
		r.Route("/integrations/{integrationID}", func(r chi.Router) {
			r.Get("/", s.getIntegration)
			r.Get("/resources", s.listResources)
			r.Post("/resources/sync", s.syncResources)
			r.Get("/sync-status", s.getSyncStatus)
			r.Get("/channels/selected", s.listSelectedChannels)
			r.Post("/channels/select", s.selectChannels)
			r.Post("/channels/deselect", s.deselectChannels)
		})

		r.Route("/teams/{teamID}/reports", func(r chi.Router) {
			r.Get("/", s.listReports)
			r.Post("/", s.createReport)
			r.Get("/{reportID}", s.getReport)
			r.Post("/{reportID}/generate", s.generateReport)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
