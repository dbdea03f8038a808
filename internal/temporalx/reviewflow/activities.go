package reviewflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

// Executor runs a job to completion on the calling goroutine.
type Executor interface {
	Execute(ctx context.Context, job orchestrator.Job) (orchestrator.Result, error)
}

type Activities struct {
	Log  *logger.Logger
	Exec Executor

	// HeartbeatEvery defaults to 10s.
	HeartbeatEvery time.Duration
}

func (a *Activities) Run(ctx context.Context, in Input) (Output, error) {
	if a == nil || a.Exec == nil {
		return Output{}, fmt.Errorf("reviewflow: activity not configured")
	}
	stop := a.startHeartbeat(ctx)
	defer stop()

	res, err := a.Exec.Execute(ctx, in.Job())
	out := Output{
		UnitsTotal:      res.UnitsTotal,
		UnitsProcessed:  res.UnitsProcessed,
		CommentsWritten: res.CommentsWritten,
		UnitsFailed:     len(res.Failures),
	}
	if err != nil {
		var ve *reviewerr.ValidationError
		var ee *reviewerr.ExtractionError
		if errors.As(err, &ve) || errors.As(err, &ee) {
			return out, temporal.NewNonRetryableApplicationError(err.Error(), reviewerr.Kind(err), err)
		}
		return out, err
	}
	return out, nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
