package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"vasilala/logger"

	"github.com/redis/go-redis/v9"
)

type contextKey string

const userContextKey contextKey = "user"

// UserIDFromContext returns the authenticated user id set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userContextKey).(string)
	if !ok || id == "" {
		return "", errors.New("no user in context")
	}
	return id, nil
}

// AuthMiddleware validates the Bearer token and stores the user id in
// the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		profile, err := h.identity.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, profile.ID)
		next(w, r.WithContext(ctx))
	}
}

// corsMiddleware allows browser clients on other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkRateLimit increments a windowed counter for the caller. Fails
// open when Redis is unavailable.
func checkRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) bool {
	if rdb == nil {
		return true
	}
	key := fmt.Sprintf("rl:%s:%s", resource, id)
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		logger.Warn("rate limit check failed", logger.ErrorField(err))
		return true
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit)
}

// RateLimit enforces limit requests per window, keyed by authenticated
// user when present, otherwise by remote IP.
func RateLimit(rdb *redis.Client, resource string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := UserIDFromContext(r.Context())
			if err != nil {
				host, _, splitErr := net.SplitHostPort(r.RemoteAddr)
				if splitErr != nil {
					host = r.RemoteAddr
				}
				id = "ip:" + host
			} else {
				id = "user:" + id
			}

			if !checkRateLimit(r.Context(), rdb, resource, id, limit, window) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
