package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/AICC2024/video-review/internal/http/handlers"
	httpMW "github.com/AICC2024/video-review/internal/http/middleware"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

func TestRouterAuthBoundary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am, err := httpMW.NewAuthMiddleware(logger.Nop(), httpMW.AuthConfig{Secret: "s3cret", Required: true})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	r := NewRouter(RouterConfig{
		Log:               logger.Nop(),
		ServiceName:       "video-review-test",
		AuthMiddleware:    am,
		AdminHandler:      httpH.NewAdminHandler(logger.Nop(), nil, nil),
		TranscriptHandler: httpH.NewTranscriptHandler(logger.Nop(), nil, nil),
		HealthHandler:     httpH.NewHealthHandler(nil),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media?type=videos", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated media list = %d", rec.Code)
	}

	for _, path := range []string{"/api/transcript/vid-1", "/api/transcript_on_demand/vid-1"} {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("unauthenticated %s = %d", path, rec.Code)
		}
	}
}
