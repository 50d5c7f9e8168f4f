package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pvsf-admin/internal/config"
	"pvsf-admin/internal/handler"
	"pvsf-admin/internal/middleware"
	"pvsf-admin/internal/model"
)

func New(
	cfg *config.Config,
	healthCheck func(context.Context) error,
	authMiddleware *middleware.AuthMiddleware,
	oplogHandler *handler.OplogHandler,
	lifecycleHandler *handler.LifecycleHandler,
	cleanupHandler *handler.CleanupHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(model.APIResponse{
					Success: false,
					Error: &model.APIError{
						Code:    "STORE_UNAVAILABLE",
						Message: "database is unreachable",
					},
				})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/admin", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(authMiddleware.RequireCapability)
		api.Use(authMiddleware.RequirePrivileged)

		api.Get("/logs", oplogHandler.List)
		api.Post("/logs/restore", oplogHandler.RestoreFromLog)
		api.Post("/logs/purge", oplogHandler.Purge)

		api.Get("/deleted", lifecycleHandler.ListDeleted)
		api.Post("/deleted/restore", lifecycleHandler.Restore)
		api.Post("/soft-delete", lifecycleHandler.SoftDelete)
		api.Post("/permanent-delete", lifecycleHandler.PermanentDelete)

		api.Get("/cleanup/candidates", cleanupHandler.Candidates)
		api.Post("/cleanup/soft-delete", cleanupHandler.BatchSoftDelete)
	})

	return r
}
