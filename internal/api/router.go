package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/teemow/slotfinder/internal/server"
)

// Options configures NewRouter.
type Options struct {
	// APIKey is required in the X-API-Key header of every /api and /mcp
	// request.
	APIKey string

	// RateLimitPerMinute caps requests per client IP. Zero disables it.
	RateLimitPerMinute int

	// AllowedOrigins lists CORS origins. Empty means "*".
	AllowedOrigins []string

	// Health mounts the probe endpoints when set.
	Health *server.HealthChecker

	// MCPHandler is mounted at /mcp when set, behind the API key.
	MCPHandler http.Handler

	Logger *slog.Logger
}

// NewRouter builds the REST handler tree.
func NewRouter(sc *server.ServerContext, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &handlers{sc: sc}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID(logger))
	r.Use(recordRequests(sc.Metrics()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderAPIKey, HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         300,
	}))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, msgRateLimited)
			}),
		))
	}

	r.Get("/", h.root)
	if opts.Health != nil {
		opts.Health.RegisterHealthEndpoints(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(apiKeyAuth(opts.APIKey))
		r.Post("/availability", h.availability)
		r.Post("/book", h.book)
	})

	if opts.MCPHandler != nil {
		r.With(apiKeyAuth(opts.APIKey)).Handle("/mcp", opts.MCPHandler)
	}

	return r
}
