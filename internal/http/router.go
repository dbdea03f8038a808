package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/AICC2024/video-review/internal/http/handlers"
	httpMW "github.com/AICC2024/video-review/internal/http/middleware"
	"github.com/AICC2024/video-review/internal/observability"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	ReviewHandler     *httpH.ReviewHandler
	CommentHandler    *httpH.CommentHandler
	AdminHandler      *httpH.AdminHandler
	DocumentHandler   *httpH.DocumentHandler
	TranscriptHandler *httpH.TranscriptHandler
	NotifyHandler     *httpH.NotifyHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Review jobs and chat
		if cfg.ReviewHandler != nil {
			protected.POST("/review/async", cfg.ReviewHandler.ReviewAsync)
			protected.POST("/review/video/async", cfg.ReviewHandler.ReviewVideoAsync)
			protected.POST("/review/document", cfg.ReviewHandler.ReviewDocument)
			protected.POST("/review/chat", cfg.ReviewHandler.Chat)
		}

		// Comments
		if cfg.CommentHandler != nil {
			protected.POST("/comments", cfg.CommentHandler.Create)
			protected.GET("/comments/unique_asset_ids", cfg.CommentHandler.UniqueAssetIDs)
			protected.GET("/comments/:asset_id", cfg.CommentHandler.ListByAsset)
			protected.PUT("/comments/:id", cfg.CommentHandler.Update)
			protected.PATCH("/comments/:id/reactions", cfg.CommentHandler.ToggleReactions)
			protected.DELETE("/comments/:id", cfg.CommentHandler.Delete)
		}

		// Admin and media
		if cfg.AdminHandler != nil {
			protected.GET("/admin/instructions", cfg.AdminHandler.GetInstructions)
			protected.GET("/admin/instructions/all", cfg.AdminHandler.ListInstructions)
			protected.POST("/admin/instructions", cfg.AdminHandler.SaveInstructions)
			protected.POST("/admin/upload", cfg.AdminHandler.Upload)
			protected.POST("/admin/archive", cfg.AdminHandler.Archive)
			protected.GET("/media", cfg.AdminHandler.ListMedia)
		}

		// Documents
		if cfg.DocumentHandler != nil {
			protected.GET("/documents/:asset_id/text", cfg.DocumentHandler.Text)
		}

		// Transcripts
		if cfg.TranscriptHandler != nil {
			protected.GET("/transcript/:asset_id", cfg.TranscriptHandler.Stored)
			protected.GET("/transcript_on_demand/:asset_id", cfg.TranscriptHandler.OnDemand)
		}

		// Notifications
		if cfg.NotifyHandler != nil {
			protected.POST("/notify/team", cfg.NotifyHandler.Team)
			protected.POST("/notify/comment", cfg.NotifyHandler.Comment)
		}
	}

	return r
}
