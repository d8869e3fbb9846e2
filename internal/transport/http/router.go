// Package httptransport assembles the process-wide router. It owns no
// business logic: handlers delegate to services, and the trigger endpoint
// delegates to the scheduler's job table.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"obligo/internal/platform/metrics"
	"obligo/internal/platform/middleware"
	"obligo/pkg/platform/httputil"
	"obligo/pkg/requestcontext"
)

// Registrar mounts a handler group onto the router.
type Registrar interface {
	Register(r chi.Router)
}

// TriggerRunner dispatches an on-demand job run by trigger name.
type TriggerRunner interface {
	RunNow(ctx context.Context, name string) (any, error)
}

// Deps carries everything the router needs.
type Deps struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator
	Compliance   Registrar
	Tenants      Registrar
	Triggers     TriggerRunner
}

// NewRouter wires the middleware chain and mounts all endpoint groups.
//
// Layout:
//   - /healthz, /metrics: unauthenticated operational endpoints
//   - /masters, /instances: authenticated compliance surface
//   - /admin/*: tenant administration and trigger runs, admin claim required
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.LatencyMiddleware(d.Metrics))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(d.JWTValidator, d.Logger))

		d.Compliance.Register(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(d.Logger))
			d.Tenants.Register(r)
			r.Post("/triggers/{name}/run", handleTriggerRun(d.Triggers, d.Logger))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerRunResponse reports the outcome of an on-demand trigger run.
type TriggerRunResponse struct {
	Trigger string `json:"trigger"`
	Summary any    `json:"summary"`
}

func handleTriggerRun(runner TriggerRunner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := chi.URLParam(r, "name")
		requestID := requestcontext.RequestID(ctx)

		summary, err := runner.RunNow(ctx, name)
		if err != nil {
			logger.ErrorContext(ctx, "trigger run failed",
				"request_id", requestID,
				"trigger", name,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}

		logger.InfoContext(ctx, "trigger run finished",
			"request_id", requestID,
			"trigger", name,
		)
		httputil.WriteJSON(w, http.StatusOK, TriggerRunResponse{Trigger: name, Summary: summary})
	}
}
