package orchestrator

import (
	"strings"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

// Job is one review of one asset. WholeAsset asks for a single review of
// the full document text instead of one review per unit.
type Job struct {
	JobID      string
	AssetID    string
	MediaKind  types.MediaKind
	Source     extract.Source
	WholeAsset bool
}

type State string

const (
	StateStart      State = "start"
	StateExtracting State = "extracting"
	StateRendering  State = "rendering"
	StatePrompting  State = "prompting"
	StateCalling    State = "calling"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateAborted    State = "aborted"
)

// UnitFailure records a unit that was skipped. Stage is the state the unit
// was in when it failed.
type UnitFailure struct {
	UnitIndex int
	Stage     State
	Kind      string
	Err       error
}

type Result struct {
	JobID           string
	AssetID         string
	UnitsTotal      int
	UnitsProcessed  int
	CommentsWritten int
	Failures        []UnitFailure
	States          []State
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Final is the last state the job reached.
func (r Result) Final() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

// Validate checks the inputs a job needs before any background work starts.
func Validate(job Job) error {
	if strings.TrimSpace(job.AssetID) == "" {
		return &reviewerr.ValidationError{Field: "asset_id"}
	}
	switch job.MediaKind {
	case types.MediaDocument, types.MediaStoryboard, types.MediaVideo:
	default:
		return &reviewerr.ValidationError{Field: "media_type"}
	}
	if job.Source.Empty() {
		return &reviewerr.ValidationError{Field: "file_url"}
	}
	if job.WholeAsset && !job.MediaKind.Paged() {
		return &reviewerr.ValidationError{Field: "media_type"}
	}
	return nil
}
