package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/http/handlers"
	"github.com/tharamac2/Tharamac/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured, wrapped in CORS.
func NewRouter(
	authHandler *handlers.AuthHandler,
	authenticator middleware.Authenticator,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/request", authHandler.HandleRequestOTP)
		r.Post("/verify", authHandler.HandleVerifyOTP)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)

		r.With(middleware.AuthMiddleware(authenticator)).Post("/logout_all", authHandler.HandleLogoutAll)
	})

	// Protected routes (JWT access token or session token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(authenticator))
		r.Get("/me", authHandler.HandleMe)
		r.Patch("/me", authHandler.HandleUpdateMe)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(r)
}
