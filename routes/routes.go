package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/minichat-gateway/app"
	"github.com/upb/minichat-gateway/handlers"
	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services"
	"github.com/upb/minichat-gateway/utils"
)

// difyProvider is the provider pinned by POST /api/chat/dify
const difyProvider = "dify"

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	auth := deps.AuthMiddleware

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Instrument(deps.Metrics))
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthChecks := map[string]handlers.HealthChecker{}
	if deps.DB != nil {
		healthChecks["database"] = deps.DB
	}
	if deps.Redis != nil {
		healthChecks["redis"] = deps.Redis
	}
	health := handlers.NewHealthHandler(healthChecks, logger)
	authHandler := handlers.NewAuthHandler(deps.Accounts, logger)
	chatHandler := handlers.NewChatHandler(deps.Chat, logger)
	historyHandler := handlers.NewHistoryHandler(deps.History, logger)
	userHandler := handlers.NewUserHandler(deps.Accounts, deps.History, logger)
	adminHandler := handlers.NewAdminHandler(deps.Admin, logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if cfg.Observability.MetricsEnabled {
		r.Method(http.MethodGet, cfg.Observability.MetricsPath, deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.HandleLogin)
			r.With(auth.Pipeline(auth.Authenticate())).Post("/refresh", authHandler.HandleRefresh)
			r.With(auth.Pipeline(auth.Authenticate())).Post("/logout", authHandler.HandleLogout)
			r.With(auth.Pipeline(auth.RefreshAware())).Get("/verify", authHandler.HandleVerify)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.Pipeline(auth.Authenticate()))
				// Chat access and quota are enforced by the chat service
				r.Post("/", chatHandler.HandleChat)
				r.Post("/dify", chatHandler.HandleProviderChat(difyProvider))
				r.Post("/save", historyHandler.HandleSave)
				r.Get("/history", historyHandler.HandleList)
				r.Delete("/history", historyHandler.HandleClear)
				r.Delete("/history/{logId}", historyHandler.HandleDelete)
				r.Get("/conversations", historyHandler.HandleConversations)
				r.Post("/like", historyHandler.HandleLike)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(auth.Pipeline(auth.Authenticate()))
			r.Get("/profile", userHandler.HandleProfile)
			r.Get("/stats", userHandler.HandleStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Pipeline(auth.Authenticate(), middleware.RequireIssuedAs(models.SessionTypeAdmin)))
			r.Get("/summary", adminHandler.HandleSummary)
		})

		r.With(auth.Optional()).Get("/public/ping", userHandler.HandlePing)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, string(services.ErrorTypeNotFound), "endpoint not found", nil)
	})

	return r
}
