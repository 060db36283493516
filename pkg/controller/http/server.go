package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

type Server struct {
	router              *chi.Mux
	uc                  *usecase.UseCases
	authUC              AuthUseCase
	slackSigningSecret  string
	githubWebhookSecret string
}

type Options func(*Server)

func WithAuth(authUC AuthUseCase) Options {
	return func(s *Server) {
		s.authUC = authUC
	}
}

// WithSlackSigningSecret enables X-Slack-Signature verification on the Slack webhook
func WithSlackSigningSecret(secret string) Options {
	return func(s *Server) {
		s.slackSigningSecret = secret
	}
}

// WithGitHubWebhookSecret enables X-Hub-Signature-256 verification on the GitHub webhook
func WithGitHubWebhookSecret(secret string) Options {
	return func(s *Server) {
		s.githubWebhookSecret = secret
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
		authUC: uc.Auth,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	// Webhooks are unauthenticated; signatures are checked when secrets are configured
	r.Route("/api/webhooks", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.slackSigningSecret != "" {
				r.Use(SlackSignatureMiddleware(s.slackSigningSecret))
			}
			r.Post("/slack", slackWebhookHandler(uc.Webhook))
		})
		r.Post("/github", githubWebhookHandler(uc.Webhook, s.githubWebhookSecret))
	})

	if s.authUC != nil {
		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/login", authLoginHandler(s.authUC))
			r.Get("/callback", authCallbackHandler(s.authUC))
			r.Post("/logout", authLogoutHandler(s.authUC))
			r.Get("/me", authMeHandler(s.authUC))
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.authUC))

		r.Get("/api/messages", listMessagesHandler(uc.Message))
		r.Post("/api/messages", ingestMessageHandler(uc.Message))
		r.Post("/api/sync-messages", syncMessagesHandler(uc.Sync))

		r.Get("/api/connections", listConnectionsHandler(uc.Connect))
		r.Get("/api/connect/{platform}", connectStartHandler(uc.Connect))
		r.Get("/api/connect/{platform}/callback", connectCallbackHandler(uc.Connect))
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
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
