package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// requestTimeout bounds every request at 30s server-side, per the
// concurrency model: handlers must return 408 on expiry without mutating
// state. RequestTimeout (not chi's stock middleware.Timeout, which replies
// 504) cancels the request context and writes the 408 itself; Store calls
// made after expiry observe ctx.Err() and abort before mutating anything.
const requestTimeout = 30 * time.Second

// Routes assembles the full chi router for the control plane, including
// CORS-equivalent headers left to the edge (out of scope per the component
// design), base middleware, and the Swagger UI route.
func Routes(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(RequestTimeout(requestTimeout))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Post("/", h.CreateJob)
		r.Get("/stats", h.Stats)
		r.Post("/validate-cron", h.ValidateCron)
		r.Post("/cleanup", h.CleanupExecutions)
		r.Get("/{id}", h.GetJob)
		r.Put("/{id}", h.UpdateJob)
		r.Delete("/{id}", h.DeleteJob)
		r.Post("/{id}/trigger", h.TriggerJob)
		r.Get("/{id}/executions", h.ListExecutions)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
