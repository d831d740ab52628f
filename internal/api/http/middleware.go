package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"minibank-core/internal/domain"
	"minibank-core/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	userIDHeader         = "X-User-Id"
	internalSecretHeader = "X-Internal-Secret"
)

type userIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// accessLog logs one line per request once the handler returns.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		logger.HTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}

// requireUser reads the trusted caller id set by the gateway. It is not
// re-validated here.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(userIDHeader)
		if raw == "" {
			writeError(r.Context(), w, domain.Validation("%s header is required", userIDHeader), orchestratorStatus)
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(r.Context(), w, domain.Validation("%s header is not a valid id", userIDHeader), orchestratorStatus)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		ctx = logger.WithAttrs(ctx, "userID", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey{}).(uuid.UUID)
	return id
}

// requireInternalSecret guards service-to-service routes. An empty secret
// disables the check.
func requireInternalSecret(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(internalSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "UNAUTHORIZED", Message: "missing or invalid internal secret"}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
