package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/monitoring"
)

// maxRequestBodyBytes caps a heatmap-tile or property-tile request body —
// a factor list and scoring params is small, this is generous headroom.
const maxRequestBodyBytes = 1 << 20 // 1 MiB

// Server holds the handlers' dependencies and builds the chi router.
type Server struct {
	Heatmap      *HeatmapHandler
	Property     *PropertyHandler
	Health       *monitoring.HealthChecker
	AdminSecret  string
	adminLimiter *RateLimiter
}

// NewServer creates a Server. adminSecret may be empty, in which case the
// prewarm endpoint always returns 401 — there is no "no auth required"
// mode for an endpoint that triggers bulk tile builds.
func NewServer(heatmap *HeatmapHandler, property *PropertyHandler, health *monitoring.HealthChecker, adminSecret string) *Server {
	return &Server{
		Heatmap:      heatmap,
		Property:     property,
		Health:       health,
		AdminSecret:  adminSecret,
		adminLimiter: NewRateLimiter(rate.Limit(1), 2),
	}
}

// Router builds the full chi.Router with the middleware chain and every
// route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(LoggingMiddleware(slog.Default()))
	r.Use(TracingMiddleware())
	r.Use(RequestSizeLimiter(maxRequestBodyBytes))

	r.Get("/healthz", s.Health.HealthHandler())
	r.Get("/readyz", s.Health.ReadinessHandler())
	r.Get("/livez", s.Health.LivenessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/heatmap-tile", s.Heatmap.ServeTile)
		api.Post("/heatmap-viewport", s.Heatmap.ServeViewport)
		api.Post("/heatmap-point", s.Heatmap.ServePoint)
		api.Post("/property-tile", s.Property.ServeTile)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.adminLimiter.Middleware)
			admin.Use(s.requireAdminSecret)
			admin.Post("/prewarm", s.Heatmap.ServePrewarm)
		})
	})

	return r
}

func (s *Server) requireAdminSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminSecret == "" {
			writeError(w, core.NewError(core.KindUnauthorized, "no admin secret is configured"))
			return
		}
		result := core.AuthenticateBearer(r.Header.Get("Authorization"), s.AdminSecret)
		if !result.Authorized {
			writeError(w, core.NewError(core.KindUnauthorized, result.Error))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown releases background resources (rate limiter cleanup goroutine).
func (s *Server) Shutdown() {
	s.adminLimiter.Stop()
}
