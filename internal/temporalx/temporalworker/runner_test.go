package temporalworker

import (
	"context"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
	"github.com/AICC2024/video-review/internal/temporalx"
)

type noopExec struct{}

func (noopExec) Execute(context.Context, orchestrator.Job) (orchestrator.Result, error) {
	return orchestrator.Result{}, nil
}

func TestNewRunnerRequiresDeps(t *testing.T) {
	if _, err := NewRunner(logger.Nop(), nil, temporalx.Config{}, noopExec{}); err == nil {
		t.Fatal("want error without a client")
	}
}
