package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clockwise-app/clockwise/internal/observability"
	"github.com/clockwise-app/clockwise/internal/platform/httpx"
	"github.com/clockwise-app/clockwise/jobs"
)

// OpsRouterParams groups dependencies for the operational HTTP surface.
//
// The business API (member CRUD, auth, clock-in endpoints) is served
// elsewhere; this router only exposes health and metrics for probes.
type OpsRouterParams struct {
	Logger     *slog.Logger
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Metrics    *observability.Metrics
	JobHandler *jobs.Handler
}

// NewOpsRouter constructs the chi.Router for the ops listener.
func NewOpsRouter(params OpsRouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Warn("healthz db ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		if params.Redis != nil {
			if err := params.Redis.Ping(req.Context()).Err(); err != nil {
				params.Logger.Warn("healthz redis ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
