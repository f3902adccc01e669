package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"fiatsend/internal/ledger"
	"fiatsend/internal/metrics"
	"fiatsend/internal/oracle"
	"fiatsend/internal/service"
)

// Converter is the conversion flow exposed over HTTP.
type Converter interface {
	Quote(ctx context.Context, fiatAmount uint64, mode oracle.Mode) (service.Quote, error)
	Send(ctx context.Context, req service.Request) (service.Receipt, error)
}

// Options configure the router.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	// History backs GET /v1/transfers; the route is omitted when nil.
	History ledger.History
}

// NewRouter builds the HTTP surface.
func NewRouter(conv Converter, opts Options, logger zerolog.Logger) http.Handler {
	h := &handler{conv: conv, history: opts.History, logger: logger.With().Str("component", "http").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/quote", h.quote)
		r.Post("/transfers", h.send)
		if h.history != nil {
			r.Get("/transfers", h.listTransfers)
		}
	})
	return r
}

func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
