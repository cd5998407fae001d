package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/plans"
	"cv-ranker/internal/services/health"
	"cv-ranker/internal/shared/config"
	"cv-ranker/internal/usage"
)

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func newTestRouter(env string, hc *health.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	catalog := plans.NewMemoryCatalog(plans.DefaultPlans()...)
	return NewRouter(RouterDeps{
		Config:       config.Config{Env: env},
		Health:       hc,
		PlanHandler:  plans.NewHandler(catalog),
		UsageHandler: usage.NewHandler(usage.NewService(catalog, "freemium")),
	})
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	r := newTestRouter("production", nil)

	if resp := serve(r, http.MethodGet, "/api/v1/health", nil); resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
	if resp := serve(r, http.MethodGet, "/metrics", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", resp.Code)
	}
	if resp := serve(r, http.MethodGet, "/api/v1/plans", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	r := newTestRouter("dev", health.NewService(downDB{}, ""))
	resp := serve(r, http.MethodGet, "/api/v1/health", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestMeReturnsHeaderIdentityInDev(t *testing.T) {
	r := newTestRouter("dev", nil)
	resp := serve(r, http.MethodGet, "/api/v1/me", map[string]string{"X-User-Id": "recruiter-7"})
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "recruiter-7") {
		t.Fatalf("unexpected /me response %d %s", resp.Code, resp.Body.String())
	}
}

func TestDevRoutesOnlyInDev(t *testing.T) {
	id := map[string]string{"X-User-Id": "recruiter-7"}
	if resp := serve(newTestRouter("dev", nil), http.MethodPost, "/api/v1/dev/usage/reset", id); resp.Code != http.StatusOK {
		t.Fatalf("expected dev reset 200, got %d %s", resp.Code, resp.Body.String())
	}

	token := map[string]string{"Authorization": "Bearer not-a-jwt"}
	if resp := serve(newTestRouter("production", nil), http.MethodPost, "/api/v1/dev/usage/reset", token); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
