package http

import (
	"net/http"

	"github.com/atinyakov/TapKeeper/internal/middleware"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves
// the TapKeeper API.
//
// Routes:
//
//	POST   /api/auth/register     → authHandler.Register
//	POST   /api/auth/login        → authHandler.Login
//	GET    /api/auth/rfid-scan    → authHandler.Scan
//	POST   /api/auth/rfid-verify  → authHandler.Verify
//	POST   /api/auth/logout       → authHandler.Logout
//	GET    /api/auth/rfid-test    → authHandler.TestScan
//	POST   /api/auth/rfid-test    → authHandler.TestPush
//	GET    /api/vault             → vaultHandler.List   (signed in)
//	POST   /api/vault             → vaultHandler.Add    (signed in)
//	DELETE /api/vault/{id}        → vaultHandler.Delete (signed in)
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json"): rejects non-JSON bodies
//  2. WithRequestLogging(logger)        : logs incoming requests
//  3. SessionAuth(store)                : vault routes only
func NewRouter(
	authHandler *AuthHandler,
	vaultHandler *VaultHandler,
	store sessions.Store,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/rfid-scan", authHandler.Scan)
			r.Post("/rfid-verify", authHandler.Verify)
			r.Post("/logout", authHandler.Logout)
			r.Get("/rfid-test", authHandler.TestScan)
			r.Post("/rfid-test", authHandler.TestPush)
		})

		// Protected group: requires a completed sign-in
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(store))
			r.Get("/vault", vaultHandler.List)
			r.Post("/vault", vaultHandler.Add)
			r.Delete("/vault/{id}", vaultHandler.Delete)
		})
	})

	return r
}
