package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

const testSecret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func whoami(t *testing.T, am *AuthMiddleware, header string) (int, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/api/me", func(c *gin.Context) {
		name := ""
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			name = rd.Username
		}
		c.String(http.StatusOK, name)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func TestRequireAuth(t *testing.T) {
	am, err := NewAuthMiddleware(logger.Nop(), AuthConfig{Secret: testSecret, Required: true})
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"username claim", "Bearer " + signed(t, jwt.SigningMethodHS256, Claims{Username: "dana", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: future}}), http.StatusOK, "dana"},
		{"subject fallback", "Bearer " + signed(t, jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "lee"}}), http.StatusOK, "lee"},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, Claims{Username: "dana", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: past}}), http.StatusUnauthorized, ""},
		{"wrong alg", "Bearer " + signed(t, jwt.SigningMethodHS384, Claims{Username: "dana"}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signed(t, jwt.SigningMethodHS256, Claims{}), http.StatusUnauthorized, ""},
		{"missing", "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := whoami(t, am, tc.header)
			if status != tc.status {
				t.Fatalf("status = %d, want %d (%s)", status, tc.status, body)
			}
			if tc.status == http.StatusOK && body != tc.user {
				t.Fatalf("user = %q, want %q", body, tc.user)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	am, err := NewAuthMiddleware(logger.Nop(), AuthConfig{Secret: testSecret, Required: false})
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}
	if status, body := whoami(t, am, ""); status != http.StatusOK || body != "" {
		t.Fatalf("anonymous: %d %q", status, body)
	}
	if status, body := whoami(t, am, "Bearer "+signed(t, jwt.SigningMethodHS256, Claims{Username: "dana"})); status != http.StatusOK || body != "dana" {
		t.Fatalf("token: %d %q", status, body)
	}
	if status, _ := whoami(t, am, "Bearer garbage"); status != http.StatusUnauthorized {
		t.Fatalf("bad token with secret configured should be rejected, got %d", status)
	}
}

func TestRequiredAuthNeedsSecret(t *testing.T) {
	if _, err := NewAuthMiddleware(logger.Nop(), AuthConfig{Required: true}); err == nil {
		t.Fatal("expected error without secret")
	}
}
