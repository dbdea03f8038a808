// Package orchestrator runs a review job: extract the asset's units, ask the
// reasoning service about each one and store the replies as agent comments.
package orchestrator

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/observability"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/instructions"
	"github.com/AICC2024/video-review/internal/review/reasoning"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

type Extractor interface {
	Extract(ctx context.Context, src extract.Source, kind types.MediaKind) (*extract.UnitSeq, error)
	DocumentText(ctx context.Context, src extract.Source) (string, error)
}

type Deps struct {
	Extractor    Extractor
	Reasoner     reasoning.Direct
	Instructions instructions.Store
	Store        Store
}

type Orchestrator struct {
	log          *logger.Logger
	extractor    Extractor
	reasoner     reasoning.Direct
	instructions instructions.Store
	store        Store
}

func New(log *logger.Logger, deps Deps) *Orchestrator {
	return &Orchestrator{
		log:          log.With("component", "ReviewOrchestrator"),
		extractor:    deps.Extractor,
		reasoner:     deps.Reasoner,
		instructions: deps.Instructions,
		store:        deps.Store,
	}
}

func (o *Orchestrator) Validate(job Job) error { return Validate(job) }

// Run executes job to completion. The returned error is non-nil only when
// the job never got past validation or extraction; unit failures are
// reported in Result.Failures.
func (o *Orchestrator) Run(ctx context.Context, job Job) (Result, error) {
	res := Result{JobID: job.JobID, AssetID: job.AssetID}
	log := o.log.With("job_id", job.JobID, "asset_id", job.AssetID, "media_kind", string(job.MediaKind))
	o.enter(log, &res, StateStart)

	if err := Validate(job); err != nil {
		o.enter(log, &res, StateAborted)
		return res, err
	}

	ctx, span := observability.Tracer().Start(ctx, "review.job", trace.WithAttributes(
		attribute.String("review.asset_id", job.AssetID),
		attribute.String("review.media_kind", string(job.MediaKind)),
		attribute.String("review.job_id", job.JobID),
		attribute.Bool("review.whole_asset", job.WholeAsset),
	))
	defer span.End()
	finish := observability.Current().ReviewJobStarted(string(job.MediaKind))

	var err error
	if job.WholeAsset {
		err = o.runWhole(ctx, log, job, &res)
	} else {
		err = o.runUnits(ctx, log, job, &res)
	}
	if err != nil {
		o.enter(log, &res, StateAborted)
		finish(string(StateAborted))
		span.RecordError(err)
		span.SetStatus(codes.Error, reviewerr.Kind(err))
		log.Error("review job aborted", "kind", reviewerr.Kind(err), "error", err)
		return res, err
	}

	o.enter(log, &res, StateDone)
	finish(string(StateDone))
	span.SetAttributes(
		attribute.Int("review.units_total", res.UnitsTotal),
		attribute.Int("review.comments_written", res.CommentsWritten),
	)
	log.Info("review job done",
		"units_total", res.UnitsTotal,
		"units_processed", res.UnitsProcessed,
		"comments_written", res.CommentsWritten,
		"failures", len(res.Failures),
	)
	return res, nil
}

func (o *Orchestrator) enter(log *logger.Logger, res *Result, s State, kv ...interface{}) {
	res.enter(s)
	log.Debug("review state", append([]interface{}{"state", string(s)}, kv...)...)
}

func (o *Orchestrator) runUnits(ctx context.Context, log *logger.Logger, job Job, res *Result) error {
	o.enter(log, res, StateExtracting)
	seq, err := o.extractor.Extract(ctx, job.Source, job.MediaKind)
	if err != nil {
		return extractionFailure(job.AssetID, err)
	}
	defer seq.Close()

	res.UnitsTotal = seq.Total()
	if res.UnitsTotal == 0 {
		return &reviewerr.ExtractionError{AssetID: job.AssetID, Op: "units", Err: errors.New("asset has no reviewable units")}
	}
	system := instructions.Lookup(ctx, log, o.instructions, job.MediaKind.InstructionMode())

	for pos := 0; pos < res.UnitsTotal; pos++ {
		o.enter(log, res, StateRendering, "position", pos)
		unit, ok, renderErr := seq.Next(ctx)
		if !ok {
			break
		}
		o.unit(ctx, log, job, res, unit.Index, func(ctx context.Context) (State, error) {
			if renderErr != nil {
				return StateRendering, renderErr
			}
			return o.reviewUnit(ctx, log, job, res, unit, pos, system)
		})
	}
	return nil
}

// unit runs one unit under its own span and records its outcome. Errors
// never leave this function.
func (o *Orchestrator) unit(ctx context.Context, log *logger.Logger, job Job, res *Result, index int, step func(ctx context.Context) (State, error)) {
	ctx, span := observability.Tracer().Start(ctx, "review.unit", trace.WithAttributes(
		attribute.String("review.asset_id", job.AssetID),
		attribute.String("review.media_kind", string(job.MediaKind)),
		attribute.Int("review.unit_index", index),
	))
	defer span.End()

	stage, err := step(ctx)
	kind := reviewerr.Kind(err)
	observability.Current().ObserveReviewUnit(string(job.MediaKind), kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		res.Failures = append(res.Failures, UnitFailure{UnitIndex: index, Stage: stage, Kind: kind, Err: err})
		log.Warn("review unit skipped", "unit_index", index, "stage", string(stage), "kind", kind, "error", err)
		return
	}
	res.UnitsProcessed++
	res.CommentsWritten++
}

func (o *Orchestrator) reviewUnit(ctx context.Context, log *logger.Logger, job Job, res *Result, unit extract.Unit, pos int, system string) (State, error) {
	if err := o.store.UpsertUnitText(ctx, job.AssetID, unit.Index, unit.Text); err != nil {
		return StateRendering, err
	}

	o.enter(log, res, StatePrompting, "unit_index", unit.Index)
	req := reasoning.ReviewRequest{System: system, Image: unit.Image, ImageMIME: unit.ImageMIME}
	comment := &types.Comment{AssetID: job.AssetID, Author: types.AgentAuthor}
	if job.MediaKind == types.MediaVideo {
		req.Text = videoPrompt(unit.Index, pos+1, res.UnitsTotal, unit.Text)
		req.MaxOutputTokens = videoMaxTokens
		ts := strconv.Itoa(unit.Index)
		comment.Timestamp = &ts
	} else {
		req.Text = pagePrompt(job.MediaKind, unit.Index, res.UnitsTotal, unit.Text)
		req.MaxOutputTokens = pageMaxTokens
		idx := unit.Index
		comment.UnitIndex = &idx
	}

	o.enter(log, res, StateCalling, "unit_index", unit.Index)
	reply, err := o.reasoner.ReviewUnit(ctx, req)
	if err != nil {
		return StateCalling, err
	}

	o.enter(log, res, StatePersisting, "unit_index", unit.Index)
	if job.MediaKind == types.MediaVideo {
		comment.Body = videoComment(unit.Index, reply)
	} else {
		comment.Body = pageComment(unit.Index, reply)
	}
	if _, err := o.store.AppendComment(ctx, comment); err != nil {
		return StatePersisting, err
	}
	return StatePersisting, nil
}

func (o *Orchestrator) runWhole(ctx context.Context, log *logger.Logger, job Job, res *Result) error {
	o.enter(log, res, StateExtracting)
	text, err := o.extractor.DocumentText(ctx, job.Source)
	if err != nil {
		return extractionFailure(job.AssetID, err)
	}
	res.UnitsTotal = 1
	system := instructions.Lookup(ctx, log, o.instructions, types.MediaDocument.InstructionMode())

	o.unit(ctx, log, job, res, 0, func(ctx context.Context) (State, error) {
		o.enter(log, res, StateRendering)
		o.enter(log, res, StatePrompting)
		req := reasoning.ReviewRequest{
			System:          system,
			Text:            documentPrompt(job.AssetID, text),
			MaxOutputTokens: documentMaxTokens,
		}
		o.enter(log, res, StateCalling)
		reply, err := o.reasoner.ReviewUnit(ctx, req)
		if err != nil {
			return StateCalling, err
		}
		o.enter(log, res, StatePersisting)
		comment := &types.Comment{AssetID: job.AssetID, Author: types.AgentAuthor, Body: documentComment(reply)}
		if _, err := o.store.AppendComment(ctx, comment); err != nil {
			return StatePersisting, err
		}
		return StatePersisting, nil
	})
	return nil
}

func extractionFailure(assetID string, err error) error {
	var ee *reviewerr.ExtractionError
	if errors.As(err, &ee) {
		if ee.AssetID == "" {
			ee.AssetID = assetID
		}
		return err
	}
	return &reviewerr.ExtractionError{AssetID: assetID, Op: "extract", Err: err}
}
