// Package middleware implements the HTTP boundary's cross-cutting concerns:
// CORS, security headers, rate limiting, and JWT authentication, scoped to
// station-level callers rather than opaque API keys.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authn"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authz"
)

// CORS applies configurable allowed origins, a preflight short-circuit, and
// the standard Access-Control-* headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll || origins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the standard defensive response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize caps the request body size to limit bytes.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RateLimiter is an in-memory per-caller sliding-window limiter, keyed on
// the authenticated caller's user ID (falling back to remote address for
// unauthenticated requests).
type RateLimiter struct {
	enabled bool
	rpm     int
	burst   int
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	hits []time.Time
}

func NewRateLimiter(enabled bool, rpm, burst int) *RateLimiter {
	return &RateLimiter{enabled: enabled, rpm: rpm, burst: burst, windows: make(map[string]*slidingWindow)}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}
		key := r.RemoteAddr
		if caller, ok := CallerFromContext(r.Context()); ok {
			key = caller.UserID.String()
		}
		allowed, remaining, reset := rl.allow(key)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.rpm))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
			http.Error(w, `{"success":false,"error":{"code":"RATE_LIMIT_EXCEEDED","message":"too many requests"}}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-time.Minute)
	w, ok := rl.windows[key]
	if !ok {
		w = &slidingWindow{}
		rl.windows[key] = w
	}
	kept := w.hits[:0]
	for _, h := range w.hits {
		if h.After(windowStart) {
			kept = append(kept, h)
		}
	}
	w.hits = kept

	limit := rl.rpm + rl.burst
	if len(w.hits) >= limit {
		return false, 0, w.hits[0].Add(time.Minute)
	}
	w.hits = append(w.hits, now)
	return true, limit - len(w.hits), now.Add(time.Minute)
}

type contextKey string

const callerContextKey contextKey = "caller"

// CallerFromContext retrieves the authenticated caller set by Auth.
func CallerFromContext(ctx context.Context) (authz.Caller, bool) {
	c, ok := ctx.Value(callerContextKey).(authz.Caller)
	return c, ok
}

// Auth verifies the bearer JWT and attaches the decoded authz.Caller to the
// request context.
func Auth(issuer *authn.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := authn.ExtractBearer(r.Header.Get("Authorization"))
			if token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			claims, err := issuer.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			principal, err := claims.Principal()
			if err != nil {
				writeUnauthorized(w, "malformed token claims")
				return
			}
			caller := authz.Caller{UserID: principal.UserID, Role: principal.Role, StationID: principal.StationID}
			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"success":false,"error":{"code":"UNAUTHENTICATED","message":%q}}`, message)))
}
