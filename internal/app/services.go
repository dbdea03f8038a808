package app

import (
	"fmt"

	"github.com/AICC2024/video-review/internal/jobs/dispatch"
	jobruntime "github.com/AICC2024/video-review/internal/jobs/runtime"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/redis"
	"github.com/AICC2024/video-review/internal/review/chat"
	"github.com/AICC2024/video-review/internal/review/contextasm"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/instructions"
	"github.com/AICC2024/video-review/internal/review/notify"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
	"github.com/AICC2024/video-review/internal/review/reasoning"
	"github.com/AICC2024/video-review/internal/temporalx/reviewflow"
	"github.com/AICC2024/video-review/internal/temporalx/temporalworker"
)

type Services struct {
	Extractor    *extract.Extractor
	Reasoner     reasoning.Direct
	Instructions instructions.Store
	Context      *contextasm.Assembler
	Orchestrator *orchestrator.Orchestrator
	Chat         *chat.Service
	Notifier     *notify.Notifier

	// Job infra
	JobRegistry    *jobruntime.Registry
	Dispatcher     *dispatch.Dispatcher
	TemporalWorker *temporalworker.Runner
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	var transcriber extract.Transcriber
	if clients.GcpSpeech != nil || clients.GcpVideo != nil {
		// GCS sources go through Video Intelligence; everything else through Speech.
		transcriber = extract.ChainTranscriber{
			&extract.VideoTranscriber{Video: clients.GcpVideo},
			&extract.SpeechTranscriber{Tools: clients.LMTools, Speech: clients.GcpSpeech},
		}
	}
	extractor := extract.New(log, extract.Deps{
		Tools:       clients.LMTools,
		Bucket:      clients.GcpBucket,
		OCR:         clients.GcpVision,
		DocAI:       clients.GcpDocument,
		Transcriber: transcriber,
	}, extract.OptionsFromEnv())

	reasoner := reasoning.New(log, clients.OpenaiClient, cfg.ReasoningMode)

	store, err := wireInstructions(log, cfg, clients)
	if err != nil {
		return Services{}, err
	}

	assembler := contextasm.New(log, repos.Comment, repos.UnitText)

	orch := orchestrator.New(log, orchestrator.Deps{
		Extractor:    extractor,
		Reasoner:     reasoner,
		Instructions: store,
		Store:        orchestrator.NewGateway(repos.Comment, repos.UnitText),
	})

	registry, err := jobruntime.NewReviewRegistry(orch)
	if err != nil {
		return Services{}, fmt.Errorf("init job registry: %w", err)
	}

	// Without redis the dispatcher logs and runs jobs unlocked.
	var locker dispatch.Locker
	if clients.Redis != nil {
		locker = redis.NewLocker(clients.Redis, "review:lock:")
	}
	dispatcher := dispatch.New(log, registry, locker, dispatch.OptionsFromEnv())

	var temporalRunner *temporalworker.Runner
	if cfg.DispatchBackend == DispatchTemporal {
		dispatcher.SetBackend(reviewflow.NewStarter(log, clients.Temporal, clients.TemporalCfg.TaskQueue))
		if cfg.RunWorker {
			w, err := temporalworker.NewRunner(log, clients.Temporal, clients.TemporalCfg, dispatcher)
			if err != nil {
				return Services{}, fmt.Errorf("init temporal worker: %w", err)
			}
			temporalRunner = w
		}
	}

	chatService := chat.New(log, assembler, extractor, reasoner, store)
	notifier := notify.New(log, clients.Mail, cfg.NotifyFromEmail).WithAssetBase(cfg.PublicAssetBaseURL)

	return Services{
		Extractor:      extractor,
		Reasoner:       reasoner,
		Instructions:   store,
		Context:        assembler,
		Orchestrator:   orch,
		Chat:           chatService,
		Notifier:       notifier,
		JobRegistry:    registry,
		Dispatcher:     dispatcher,
		TemporalWorker: temporalRunner,
	}, nil
}

func wireInstructions(log *logger.Logger, cfg Config, clients Clients) (instructions.Store, error) {
	switch cfg.InstructionsBackend {
	case InstructionsRedis:
		if clients.Redis == nil {
			return nil, fmt.Errorf("INSTRUCTIONS_BACKEND=redis requires REDIS_URL or REDIS_ADDR")
		}
		return instructions.NewRedisStore(log, clients.Redis, cfg.InstructionsKey), nil
	case InstructionsFile, "":
		return instructions.NewFileStore(log, cfg.InstructionsPath), nil
	default:
		return nil, fmt.Errorf("unknown INSTRUCTIONS_BACKEND %q", cfg.InstructionsBackend)
	}
}
