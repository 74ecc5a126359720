package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker reports whether the service can serve traffic
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// NewRouter mounts the catalog API, the health probe and the metrics endpoint
func NewRouter(h *Handler, gatherer prometheus.Gatherer, health HealthChecker, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health.Healthy(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/product", func(r chi.Router) {
		r.Get("/books", h.ListBooks)
		r.Get("/books/{productId}", h.GetBook)
		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{name}/descendants", h.CategoryDescendants)
		r.Get("/tags", h.ListTags)
		r.Get("/tags/{name}", h.GetTag)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/book/register", h.RegisterBook)
			r.Put("/book/{productId}", h.UpdateBook)
			r.Post("/categories", h.CreateCategory)
			r.Post("/tags", h.CreateTag)
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)

			log.Info("HTTP request",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)),
			)
		})
	}
}
