package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/pkg/logger"
)

// RouterConfig carries the handlers and middleware settings of the API.
type RouterConfig struct {
	Logger         *logger.Logger
	JWTSecret      string
	AllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	Health        *HealthHandler
	Auth          *AuthHandler
	Conversations *ConversationHandler
	Requests      *RequestHandler
	Chat          *ChatHandler
	ChatViews     *ViewHandler
	RequestViews  *ViewHandler
}

// NewRouter builds the HTTP routes of the portal API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Reply API
	r.With(
		middleware.Auth(cfg.JWTSecret),
		middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
	).Post("/chat", cfg.Chat.Reply)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			r.Post("/auth/signup", cfg.Auth.SignUp)
			r.Post("/auth/signin", cfg.Auth.SignIn)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/me", cfg.Auth.Me)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", cfg.Conversations.Create)
				r.Get("/", cfg.Conversations.List)
				r.Route("/{id}", viewRoutes(cfg.ChatViews))
			})

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", cfg.Requests.Create)
				r.Get("/", cfg.Requests.List)
				r.Get("/suggestions", cfg.Requests.Suggestions)
				r.Route("/{id}", viewRoutes(cfg.RequestViews))
			})
		})
	})

	return r
}

func viewRoutes(h *ViewHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/view", h.Mount)
		r.Get("/view", h.Get)
		r.Delete("/view", h.Unmount)
		r.Post("/messages", h.Send)
		r.Post("/sidebar", h.Sidebar)
		r.Post("/documents/{docID}", h.Upload)
		r.Get("/events", h.Events)
	}
}
