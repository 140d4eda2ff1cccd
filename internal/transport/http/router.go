package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"github.com/NogaLive/SNIUGB/internal/platform/metrics"
	authmw "github.com/NogaLive/SNIUGB/pkg/platform/middleware/auth"
	"github.com/NogaLive/SNIUGB/pkg/platform/httputil"
)

// healthCheckTimeout bounds each dependency probe behind /health.
const healthCheckTimeout = 2 * time.Second

// Registrar mounts a module's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that need no token.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies holds everything the router needs.
type Dependencies struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator authmw.JWTValidator
	Public    []PublicRegistrar
	Modules   []Registrar
	Checks    map[string]HealthCheck
}

// NewRouter wires the middleware stack, operational endpoints and every
// module under /api/v1.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS.Concise(true),
		Skip: func(req *http.Request, respStatus int) bool {
			return req.URL.Path == "/health" || req.URL.Path == "/metrics"
		},
	}))
	r.Use(deps.Metrics.Middleware)

	r.Get("/health", healthHandler(deps.Checks))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		for _, p := range deps.Public {
			p.RegisterPublic(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(deps.Validator, logger))
			for _, m := range deps.Modules {
				m.Register(r)
			}
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
