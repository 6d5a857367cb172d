package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courseflow/internal/availability"
	"courseflow/internal/course"
	"courseflow/internal/platform/middleware"
	"courseflow/internal/registration"
	"courseflow/internal/settlement"
)

// Services bundles the domain services the API exposes.
type Services struct {
	Availability  *availability.Service
	Courses       *course.Service
	Payments      *settlement.Service
	Registrations *registration.Service
}

// NewRouter builds the full HTTP surface. Health and metrics endpoints are
// public; everything else requires a bearer token.
func NewRouter(svcs Services, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(validator, logger))

		NewAvailabilityHandler(svcs.Availability).Register(r)
		NewCourseHandler(svcs.Courses).Register(r)
		NewSettlementHandler(svcs.Payments).Register(r)
		NewRegistrationHandler(svcs.Registrations).Register(r)
	})

	return r
}
