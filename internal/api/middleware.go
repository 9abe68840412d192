package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/logging"
)

const (
	// HeaderAPIKey carries the shared secret for /api routes.
	HeaderAPIKey = "X-API-Key"

	// HeaderRequestID is echoed on every response. A client supplied value
	// is kept when it looks sane.
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLength = 128
)

type contextKey int

const (
	loggerKey contextKey = iota
	callerKey
)

// requestID tags each request with an ID and a logger carrying it.
func requestID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := context.WithValue(r.Context(), loggerKey, logging.WithRequestID(base, id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// apiKeyAuth rejects requests whose X-API-Key does not match expected.
// An empty expected key rejects everything.
func apiKeyAuth(expected string) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				loggerFrom(r.Context()).Warn("rejected request with invalid API key",
					slog.String("path", r.URL.Path),
					slog.Bool("key_present", got != ""))
				writeError(w, http.StatusUnauthorized, msgInvalidAPIKey)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, instrumentation.APIKeyFingerprint(got))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func callerFrom(ctx context.Context) string {
	if c, ok := ctx.Value(callerKey).(string); ok {
		return c
	}
	return instrumentation.APIKeyFingerprint("")
}

// recordRequests records HTTP metrics under the matched route pattern, which
// keeps label cardinality bounded.
func recordRequests(m *instrumentation.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			duration := time.Since(start)

			m.RecordHTTPRequest(r.Context(), r.Method, pattern, status, duration)
			loggerFrom(r.Context()).Debug("request completed",
				slog.String("method", r.Method),
				slog.String("route", pattern),
				slog.Int(logging.KeyStatus, status),
				slog.Duration(logging.KeyDuration, duration))
		})
	}
}
