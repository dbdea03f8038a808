package reasoning

import (
	"context"
	"time"

	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/httpx"
)

type PollStatus string

const (
	PollCompleted PollStatus = "completed"
	PollTimedOut  PollStatus = "timed_out"
	PollFailed    PollStatus = "failed"
)

// PollResult is the outcome of waiting on a session run. Text is set when
// Status is PollCompleted; Reason when it is PollFailed.
type PollResult struct {
	Status   PollStatus
	Text     string
	Reason   string
	Attempts int
}

// CheckFunc inspects the run once. done=false keeps the poller waiting.
type CheckFunc func(ctx context.Context) (res PollResult, done bool)

// Poller waits Interval before each check, for at most MaxAttempts checks,
// so a run times out after MaxAttempts*Interval.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPoller() Poller {
	return Poller{Interval: 2 * time.Second, MaxAttempts: 20}
}

func PollerFromEnv() Poller {
	p := DefaultPoller()
	p.Interval = envutil.Duration("REASONING_POLL_INTERVAL", p.Interval)
	if n := envutil.Int("REASONING_POLL_ATTEMPTS", p.MaxAttempts); n > 0 {
		p.MaxAttempts = n
	}
	return p
}

func (p Poller) Wait(ctx context.Context, check CheckFunc) PollResult {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := httpx.Sleep(ctx, p.Interval); err != nil {
			return PollResult{Status: PollFailed, Reason: err.Error(), Attempts: attempt - 1}
		}
		res, done := check(ctx)
		if done {
			res.Attempts = attempt
			return res
		}
	}
	return PollResult{Status: PollTimedOut, Attempts: p.MaxAttempts}
}
