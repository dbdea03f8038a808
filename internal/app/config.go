package app

import (
	"strings"
	"time"

	"github.com/AICC2024/video-review/internal/platform/envutil"
)

const (
	InstructionsFile  = "file"
	InstructionsRedis = "redis"

	DispatchGoroutine = "goroutine"
	DispatchTemporal  = "temporal"
)

type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	LogMode         string

	// RunServer serves the HTTP API; RunWorker hosts the Temporal review
	// worker when the temporal backend is selected.
	RunServer bool
	RunWorker bool

	JWTSecretKey string
	AuthRequired bool
	CORSOrigins  []string

	InstructionsBackend string
	InstructionsPath    string
	InstructionsKey     string

	DispatchBackend string

	NotifyFromEmail    string
	PublicAssetBaseURL string

	ServiceName   string
	Environment   string
	Version       string
	MetricsAddr   string
	AutoMigrate   bool
	ReasoningMode string
	OCRFallback   bool
	DocAIFallback bool
	Transcription bool
}

func LoadConfig() Config {
	return Config{
		Port:            envutil.String("PORT", "8080"),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogMode:         envutil.String("LOG_MODE", "development"),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		AuthRequired: envutil.Bool("AUTH_REQUIRED", true),
		CORSOrigins:  envutil.List("CORS_ALLOWED_ORIGINS"),

		InstructionsBackend: strings.ToLower(envutil.String("INSTRUCTIONS_BACKEND", InstructionsFile)),
		InstructionsPath:    envutil.String("INSTRUCTIONS_PATH", "instructions.yaml"),
		InstructionsKey:     envutil.String("INSTRUCTIONS_REDIS_KEY", ""),

		DispatchBackend: strings.ToLower(envutil.String("REVIEW_DISPATCH_BACKEND", DispatchGoroutine)),

		NotifyFromEmail:    envutil.String("NOTIFY_FROM_EMAIL", ""),
		PublicAssetBaseURL: envutil.String("PUBLIC_ASSET_BASE_URL", ""),

		ServiceName:   envutil.String("OTEL_SERVICE_NAME", "video-review"),
		Environment:   envutil.String("APP_ENV", "development"),
		Version:       envutil.String("APP_VERSION", "dev"),
		MetricsAddr:   envutil.String("METRICS_ADDR", ":9090"),
		AutoMigrate:   envutil.Bool("DB_AUTO_MIGRATE", true),
		ReasoningMode: envutil.String("REASONING_MODE", ""),
		OCRFallback:   envutil.Bool("OCR_FALLBACK_ENABLED", false),
		DocAIFallback: envutil.Bool("DOCUMENTAI_FALLBACK_ENABLED", false),
		Transcription: envutil.Bool("TRANSCRIPTION_ENABLED", true),
	}
}
