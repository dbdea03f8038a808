package app

import (
	"database/sql"
	"fmt"

	httpx "github.com/AICC2024/video-review/internal/http"
	httpH "github.com/AICC2024/video-review/internal/http/handlers"
	httpMW "github.com/AICC2024/video-review/internal/http/middleware"
	"github.com/AICC2024/video-review/internal/observability"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

type Handlers struct {
	Review     *httpH.ReviewHandler
	Comment    *httpH.CommentHandler
	Admin      *httpH.AdminHandler
	Document   *httpH.DocumentHandler
	Transcript *httpH.TranscriptHandler
	Notify     *httpH.NotifyHandler
	Health     *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, sqlDB *sql.DB, repos Repos, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Review:     httpH.NewReviewHandler(log, services.Dispatcher, services.Chat),
		Comment:    httpH.NewCommentHandler(log, repos.Comment),
		Admin:      httpH.NewAdminHandler(log, services.Instructions, clients.GcpBucket),
		Document:   httpH.NewDocumentHandler(log, services.Extractor),
		Transcript: httpH.NewTranscriptHandler(log, services.Extractor, repos.UnitText),
		Notify:     httpH.NewNotifyHandler(log, services.Notifier),
		Health:     httpH.NewHealthHandler(sqlDB),
	}
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) (Middleware, error) {
	log.Info("Wiring middleware...")
	auth, err := httpMW.NewAuthMiddleware(log, httpMW.AuthConfig{
		Secret:   cfg.JWTSecretKey,
		Required: cfg.AuthRequired,
	})
	if err != nil {
		return Middleware{}, fmt.Errorf("init auth middleware: %w", err)
	}
	return Middleware{Auth: auth}, nil
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, mw Middleware) *httpx.Server {
	log.Info("Wiring router...")
	return httpx.NewServer(httpx.RouterConfig{
		Log:               log,
		Metrics:           observability.Current(),
		ServiceName:       cfg.ServiceName,
		CORSOrigins:       cfg.CORSOrigins,
		AuthMiddleware:    mw.Auth,
		ReviewHandler:     handlers.Review,
		CommentHandler:    handlers.Comment,
		AdminHandler:      handlers.Admin,
		DocumentHandler:   handlers.Document,
		TranscriptHandler: handlers.Transcript,
		NotifyHandler:     handlers.Notify,
		HealthHandler:     handlers.Health,
	})
}
