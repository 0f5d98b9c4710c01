package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/contribview/pkg/utils/errutil"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
)

// requestLogger attaches a logger carrying the request ID to the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.From(r.Context())
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			logger = logger.With("request_id", reqID)
		}
		ctx := logging.With(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenMiddleware validates the bearer token of API requests
func tokenMiddleware(token string) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				errutil.WriteJSONError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			given, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
				errutil.WriteJSONError(w, "Invalid authentication token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
