package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"cv-ranker/internal/shared/auth"
)

func newAuthRouter(env string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(env))
	router.GET("/api/v1/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c), "email": UserEmailFromContext(c)})
	})
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.OPTIONS("/api/v1/rankings", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router := newAuthRouter("dev")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rankings", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthSkipsHealth(t *testing.T) {
	router := newAuthRouter("production")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")
	token, err := auth.SignJWT(auth.Claims{
		Email:            "hr@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"},
	})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	router := newAuthRouter("production")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if body := resp.Body.String(); body != `{"email":"hr@example.com","userId":"user-42"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestAuthHeaderIdentityOnlyInDev(t *testing.T) {
	for _, tt := range []struct {
		env  string
		want int
	}{
		{env: "dev", want: http.StatusOK},
		{env: "production", want: http.StatusUnauthorized},
	} {
		router := newAuthRouter(tt.env)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		req.Header.Set("X-User-Id", "user-7")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("env=%s expected %d, got %d", tt.env, tt.want, resp.Code)
		}
	}
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	router := newAuthRouter("dev")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRequireRoleChecksTokenRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "production")
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth("production"))
	router.GET("/api/v1/admin/ping", RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, tt := range []struct {
		role string
		want int
	}{
		{role: RoleAdmin, want: http.StatusOK},
		{role: "", want: http.StatusForbidden},
		{role: "recruiter", want: http.StatusForbidden},
	} {
		token, err := auth.SignJWT(auth.Claims{
			Role:             tt.role,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		})
		if err != nil {
			t.Fatalf("SignJWT: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("role=%q expected %d, got %d", tt.role, tt.want, resp.Code)
		}
	}
}
