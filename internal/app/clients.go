package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/localmedia"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/openai"
	"github.com/AICC2024/video-review/internal/platform/redis"
	"github.com/AICC2024/video-review/internal/platform/sendgrid"
	"github.com/AICC2024/video-review/internal/temporalx"
)

type Clients struct {
	Redis        *goredis.Client
	Temporal     temporalsdkclient.Client
	TemporalCfg  temporalx.Config
	OpenaiClient openai.Client
	Mail         sendgrid.Client
	LMTools      localmedia.Tools
	GcpBucket    gcp.BucketService
	GcpDocument  gcp.Document
	GcpSpeech    gcp.Speech
	GcpVideo     gcp.Video
	GcpVision    gcp.Vision
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis (instruction store and asset lock)
	if envutil.String("REDIS_URL", "") != "" || envutil.String("REDIS_ADDR", "") != "" {
		rdb, err := redis.New(log)
		if err != nil {
			return c, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
	}

	// Temporal
	c.TemporalCfg = temporalx.LoadConfig()
	if cfg.DispatchBackend == DispatchTemporal {
		tc, err := temporalx.NewClient(ctx, log, c.TemporalCfg)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		if tc == nil {
			c.Close()
			return Clients{}, fmt.Errorf("REVIEW_DISPATCH_BACKEND=temporal requires TEMPORAL_ADDRESS")
		}
		c.Temporal = tc
	}

	// Gcs
	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}
	c.GcpBucket = bucket

	// Openai
	oa, err := openai.NewClient(log)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	c.OpenaiClient = oa

	// Sendgrid is optional; notify routes answer 500 without it.
	if mail, err := sendgrid.NewFromEnv(log); err != nil {
		log.Warn("SendGrid disabled", "error", err)
	} else {
		c.Mail = mail
	}

	c.LMTools = localmedia.New(log)

	// Gcp
	if cfg.OCRFallback {
		vision, err := gcp.NewVision(log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init vision client: %w", err)
		}
		c.GcpVision = vision
	}
	if cfg.DocAIFallback {
		document, err := gcp.NewDocument(log, gcp.DocAIConfigFromEnv())
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init document client: %w", err)
		}
		c.GcpDocument = document
	}
	if cfg.Transcription {
		speech, err := gcp.NewSpeech(log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init speech client: %w", err)
		}
		c.GcpSpeech = speech
		video, err := gcp.NewVideo(log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init video client: %w", err)
		}
		c.GcpVideo = video
	}

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.GcpVideo != nil {
		_ = c.GcpVideo.Close()
	}
	if c.GcpSpeech != nil {
		_ = c.GcpSpeech.Close()
	}
	if c.GcpDocument != nil {
		_ = c.GcpDocument.Close()
	}
	if c.GcpVision != nil {
		_ = c.GcpVision.Close()
	}
	if c.GcpBucket != nil {
		_ = c.GcpBucket.Close()
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
