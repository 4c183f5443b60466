package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authn"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/config"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/observability"
)

func testRouter() http.Handler {
	cfg := &config.Config{
		Addr:             ":0",
		Env:              "test",
		RequestTimeout:   5 * time.Second,
		RateLimitEnabled: false,
		MaxBodyBytes:     1 << 20,
	}
	log := zerolog.New(io.Discard)
	metrics := observability.NewMetrics(log)
	issuer := authn.NewIssuer("test-secret", time.Hour)
	return NewRouter(cfg, log, metrics, issuer, &Handlers{Issuer: issuer, Clock: nil})
}

func TestHealthEndpoints(t *testing.T) {
	r := testRouter()

	for _, path := range []string{"/healthz", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, req)
		if rw.Result().StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rw.Result().StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", rw.Result().StatusCode)
	}
}

func TestUnauthenticatedProtectedRouteReturns401(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/missed-readings", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated protected route, got %d", rw.Result().StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options"} {
		if rw.Header().Get(h) == "" {
			t.Fatalf("expected security header %s to be set", h)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/readings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS Allow-Origin header on preflight response")
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	cfg := &config.Config{
		Addr:             ":0",
		Env:              "test",
		RequestTimeout:   5 * time.Second,
		RateLimitEnabled: false,
		MaxBodyBytes:     1 << 20,
	}
	log := zerolog.New(io.Discard)
	metrics := observability.NewMetrics(log)
	issuer := authn.NewIssuer("test-secret", time.Hour)

	r := NewRouter(cfg, log, metrics, issuer, &Handlers{Issuer: issuer})

	token, err := issuer.Issue(idgen.New(), models.RoleOwner, nil)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/missed-readings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	// Handlers.Dashboard is nil, so the handler itself will panic-recover into
	// a 500 — what this test asserts is that Auth let the request past 401.
	if rw.Result().StatusCode == http.StatusUnauthorized {
		t.Fatalf("expected a valid bearer token to pass Auth, got 401")
	}
}
