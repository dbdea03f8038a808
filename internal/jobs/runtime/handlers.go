package runtime

import (
	"context"
	"fmt"

	"github.com/AICC2024/video-review/internal/review/orchestrator"
)

type runner interface {
	Run(ctx context.Context, job orchestrator.Job) (orchestrator.Result, error)
}

type reviewHandler struct {
	jobType string
	whole   bool
	orch    runner
}

func (h *reviewHandler) Type() string { return h.jobType }

func (h *reviewHandler) Run(ctx context.Context, job orchestrator.Job) (orchestrator.Result, error) {
	if job.WholeAsset != h.whole {
		return orchestrator.Result{}, fmt.Errorf("job_type=%s cannot run whole_asset=%v", h.jobType, job.WholeAsset)
	}
	return h.orch.Run(ctx, job)
}

// NewReviewRegistry registers the per-unit and whole-document review handlers.
func NewReviewRegistry(orch runner) (*Registry, error) {
	r := NewRegistry()
	for _, h := range []Handler{
		&reviewHandler{jobType: TypeAssetReview, orch: orch},
		&reviewHandler{jobType: TypeDocumentReview, whole: true, orch: orch},
	} {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}
