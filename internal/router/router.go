package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"blueprint-api/internal/config"
	"blueprint-api/internal/handler"
	"blueprint-api/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Spec   *handler.SpecHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, cfg.GenerationRateLimitRPM, cfg.APIPrefix)

	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		slog.Warn("ignoring trusted proxies", "error", err)
		trustedProxies = nil
	}

	r.Use(middleware.Recovery)
	r.Use(middleware.RealIP(trustedProxies))
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.StripSlashes)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)

	r.Group(func(root chi.Router) {
		mountAPI(root, cfg, authMiddleware, h)
	})
	if cfg.APIPrefix != "" {
		r.Route(cfg.APIPrefix, func(api chi.Router) {
			mountAPI(api, cfg, authMiddleware, h)
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"Method not allowed","code":"METHOD_NOT_ALLOWED"}`))
	})

	return r
}

// mountAPI registers every route. Trailing slashes are removed before
// routing, so "/specs/" and "/specs" both match.
func mountAPI(r chi.Router, cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) {
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", h.Auth.Register)
		auth.Post("/login", h.Auth.Login)
		auth.Post("/refresh", h.Auth.Refresh)
		auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
		auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
	})

	r.Group(func(protected chi.Router) {
		protected.Use(authMiddleware.RequireAuth)

		protected.Get("/specs", h.Spec.List)
		protected.Post("/specs/generate", h.Spec.Generate)
		protected.Post("/specs/refine/{id}", h.Spec.Refine)
		protected.Get("/specs/{id}", h.Spec.Get)
		protected.Post("/code-stubs", h.Spec.CodeStubs)
	})
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":"Not found","code":"NOT_FOUND"}`))
}
