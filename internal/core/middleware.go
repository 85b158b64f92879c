package core

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// Authenticator resolves a bearer credential into an Actor. The concrete
// implementation wraps the managed identity provider's session verification;
// it is injected so handler tests never need real tokens.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (types.Actor, error)
}

// RequestIDMiddleware generates a request ID (or propagates an inbound
// X-Request-Id) and stores it in the context for logging and responses.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = newRequestID()
		}
		ctx := types.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newRequestID returns a 16-byte hex request identifier.
func newRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "req_unknown"
	}
	return hex.EncodeToString(b)
}

// Recoverer converts panics in downstream handlers into 500 responses so a
// single bad request cannot take down the process.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.Logger.ErrorContext(r.Context(), "panic recovered",
					"panic", rec,
					"path", r.URL.Path,
				)
				Error(w, r, types.NewAppError(
					types.ErrCodeInternalUnexpected,
					"an unexpected error occurred",
					nil,
				))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger emits one structured log line per request with method, path,
// status, and latency. The Authorization header is never logged.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", types.GetRequestID(r.Context()),
			)
		})
	}
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// AuthMiddleware resolves the Authorization bearer token into an Actor and
// stores it in the request context. Requests without a valid credential are
// rejected before any domain logic runs.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthTokenMissing,
				"missing bearer credential",
				nil,
			))
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		actor, err := s.Authenticator.Authenticate(r, token)
		if err != nil {
			Error(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithActor(r.Context(), actor)))
	})
}

// RequireMinRole returns middleware that checks whether the authenticated
// Actor has at least the specified role within its firm. System actors
// bypass role checks entirely.
func RequireMinRole(min types.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := types.GetActor(r.Context())
			if !ok {
				Error(w, r, types.NewAppError(
					types.ErrCodeAuthTokenMissing,
					"authentication required",
					nil,
				))
				return
			}

			if actor.Type == types.ActorTypeSystem {
				next.ServeHTTP(w, r)
				return
			}

			if !actor.Role.HasAtLeast(min) {
				Error(w, r, types.NewAppError(
					types.ErrCodePermissionRole,
					"insufficient role for this operation",
					nil,
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
