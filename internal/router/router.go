package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"storyland-backend/internal/handlers"
	"storyland-backend/internal/middleware"
	"storyland-backend/internal/observability"
	"storyland-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	trackHandler *handlers.TrackHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	storyHandler *handlers.ContentHandler,
	videoHandler *handlers.ContentHandler,
	postHandler *handlers.ContentHandler,
	wsHub *websocket.Hub,
	authLimiter *middleware.RateLimiter,
	trackLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics
	r.Handle("/metrics", observability.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authLimiter.Middleware)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
				r.Put("/password", authHandler.ChangePassword)
			})
		})

		// ──── Tracking Routes (public) ────
		r.Route("/track", func(r chi.Router) {
			r.Use(trackLimiter.Middleware)
			r.Post("/heartbeat", trackHandler.Heartbeat)
		})

		// ──── Analytics Routes ────
		r.Route("/analytics", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/active", analyticsHandler.Active)
			r.Get("/stats", analyticsHandler.Stats)
			r.Post("/refresh", analyticsHandler.Refresh)
			r.Get("/auto-refresh", analyticsHandler.GetAutoRefresh)
			r.Put("/auto-refresh", analyticsHandler.SetAutoRefresh)
			r.Get("/daily", analyticsHandler.Daily)
			r.Post("/rollup", analyticsHandler.TriggerRollup)
		})

		// ──── Content Routes ────
		// Reads are public (the site renders from them); writes are
		// admin-only.
		mountContent := func(path string, handler *handlers.ContentHandler) {
			r.Route(path, func(r chi.Router) {
				r.Get("/", handler.List)
				r.Get("/{id}", handler.Get)

				r.Group(func(r chi.Router) {
					r.Use(jwtAuth.Middleware)
					r.Post("/", handler.Create)
					r.Put("/{id}", handler.Update)
					r.Delete("/{id}", handler.Delete)
				})
			})
		}
		mountContent("/stories", storyHandler)
		mountContent("/videos", videoHandler)
		mountContent("/posts", postHandler)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
