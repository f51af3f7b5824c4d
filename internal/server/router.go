package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Routable is implemented by every feature controller.
type Routable interface {
	Routes(r chi.Router)
}

type RouterConfig struct {
	AllowedOrigins []string
	// Instrument wraps every request, typically with the metrics middleware.
	Instrument func(http.Handler) http.Handler
	Metrics    http.Handler
}

func NewRouter(cfg RouterConfig, logger *zap.Logger, controllers ...Routable) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	if cfg.Instrument != nil {
		r.Use(cfg.Instrument)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Warn("writing health response", zap.Error(err))
		}
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	for _, c := range controllers {
		c.Routes(r)
	}
	return r
}
