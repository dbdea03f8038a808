// Package dispatch starts review jobs outside the request that asked for
// them and acknowledges immediately.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	jobrt "github.com/AICC2024/video-review/internal/jobs/runtime"
	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/redis"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
)

const StatusStarted = "started"

// Ack is returned as soon as a job is handed off. It carries no job handle;
// progress is observed by re-reading the asset's comments.
type Ack struct {
	Status string `json:"status"`
}

// ErrAssetBusy is returned by Execute when another job holds the asset lock.
var ErrAssetBusy = errors.New("review already running for asset")

// Backend hands a validated job to whatever runs it in the background.
type Backend interface {
	Name() string
	Start(ctx context.Context, job orchestrator.Job) error
}

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

type Options struct {
	// MaxConcurrent bounds running background jobs; 0 leaves them unbounded.
	MaxConcurrent int
	AssetLock     bool
	LockTTL       time.Duration
}

func OptionsFromEnv() Options {
	return Options{
		MaxConcurrent: envutil.Int("REVIEW_MAX_CONCURRENT_JOBS", 0),
		AssetLock:     envutil.Bool("REVIEW_ASSET_LOCK", false),
		LockTTL:       envutil.Duration("REVIEW_ASSET_LOCK_TTL", 30*time.Minute),
	}
}

type Dispatcher struct {
	log      *logger.Logger
	registry *jobrt.Registry
	locker   Locker
	lockTTL  time.Duration
	sem      *semaphore.Weighted
	backend  Backend

	wg sync.WaitGroup
}

// New builds a dispatcher. locker may be nil when the asset lock is off.
// Until SetBackend is called jobs run on goroutines in this process.
func New(log *logger.Logger, registry *jobrt.Registry, locker Locker, opts Options) *Dispatcher {
	d := &Dispatcher{
		log:      log.With("component", "JobDispatcher"),
		registry: registry,
		lockTTL:  opts.LockTTL,
	}
	if opts.MaxConcurrent > 0 {
		d.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if opts.AssetLock {
		if locker == nil {
			d.log.Warn("REVIEW_ASSET_LOCK set without a lock backend; jobs for one asset may interleave")
		} else {
			d.locker = locker
		}
	}
	if d.lockTTL <= 0 {
		d.lockTTL = 30 * time.Minute
	}
	d.backend = goroutineBackend{d: d}
	return d
}

func (d *Dispatcher) SetBackend(b Backend) {
	if b != nil {
		d.backend = b
	}
}

func (d *Dispatcher) Backend() string { return d.backend.Name() }

// Dispatch validates job on the caller's goroutine and hands it off.
// Validation failures are returned; nothing after that is.
func (d *Dispatcher) Dispatch(ctx context.Context, job orchestrator.Job) (Ack, error) {
	if err := orchestrator.Validate(job); err != nil {
		return Ack{}, err
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if _, ok := d.registry.Get(jobrt.TypeFor(job)); !ok {
		return Ack{}, fmt.Errorf("no handler registered for job_type=%s", jobrt.TypeFor(job))
	}
	if err := d.backend.Start(ctx, job); err != nil {
		return Ack{}, fmt.Errorf("start review job: %w", err)
	}
	d.log.Info("review job dispatched",
		"job_id", job.JobID,
		"asset_id", job.AssetID,
		"media_kind", string(job.MediaKind),
		"job_type", jobrt.TypeFor(job),
		"backend", d.backend.Name(),
	)
	return Ack{Status: StatusStarted}, nil
}

// Execute runs job on the calling goroutine under the asset lock. A
// handler panic is returned as an error.
func (d *Dispatcher) Execute(ctx context.Context, job orchestrator.Job) (res orchestrator.Result, err error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	jobType := jobrt.TypeFor(job)
	h, ok := d.registry.Get(jobType)
	if !ok {
		return res, fmt.Errorf("no handler registered for job_type=%s", jobType)
	}
	log := d.log.With("job_id", job.JobID, "asset_id", job.AssetID, "job_type", jobType)

	if d.locker != nil {
		release, lerr := d.locker.Acquire(ctx, job.AssetID, d.lockTTL)
		if errors.Is(lerr, redis.ErrLockHeld) {
			log.Warn("review skipped; asset locked by another job")
			return res, ErrAssetBusy
		}
		if lerr != nil {
			// lock store down: run unlocked rather than drop the job
			log.Warn("asset lock unavailable; running unlocked", "error", lerr)
		} else {
			defer func() {
				if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
					log.Warn("asset lock release failed", "error", rerr)
				}
			}()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("review job panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("review job panic: %v", r)
		}
	}()
	return h.Run(ctx, job)
}

// Wait blocks until background jobs started by this process finish or ctx
// ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach keeps the request's trace and caller but drops its cancellation.
func Detach(ctx context.Context) context.Context {
	out := ctxutil.Detach(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = trace.ContextWithRemoteSpanContext(out, sc)
	}
	return out
}

type goroutineBackend struct {
	d *Dispatcher
}

func (goroutineBackend) Name() string { return "goroutine" }

func (b goroutineBackend) Start(ctx context.Context, job orchestrator.Job) error {
	d := b.d
	bg := Detach(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if d.sem != nil {
			if err := d.sem.Acquire(bg, 1); err != nil {
				d.log.Error("review job slot wait failed", "job_id", job.JobID, "error", err)
				return
			}
			defer d.sem.Release(1)
		}
		res, err := d.Execute(bg, job)
		if err != nil && !errors.Is(err, ErrAssetBusy) {
			d.log.Error("background review failed", "job_id", job.JobID, "asset_id", job.AssetID, "error", err)
			return
		}
		if err == nil {
			d.log.Debug("background review finished", "job_id", job.JobID, "comments_written", res.CommentsWritten)
		}
	}()
	return nil
}
