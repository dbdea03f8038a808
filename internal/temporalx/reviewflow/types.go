package reviewflow

import (
	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
)

const (
	WorkflowName = "review_asset"
	ActivityRun  = "review_asset_run"
)

// Input is the serialized form of an orchestrator.Job.
type Input struct {
	JobID      string `json:"job_id"`
	AssetID    string `json:"asset_id"`
	MediaKind  string `json:"media_kind"`
	SourceURL  string `json:"source_url,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	WholeAsset bool   `json:"whole_asset,omitempty"`
}

type Output struct {
	UnitsTotal      int `json:"units_total"`
	UnitsProcessed  int `json:"units_processed"`
	CommentsWritten int `json:"comments_written"`
	UnitsFailed     int `json:"units_failed"`
}

func InputFromJob(job orchestrator.Job) Input {
	return Input{
		JobID:      job.JobID,
		AssetID:    job.AssetID,
		MediaKind:  string(job.MediaKind),
		SourceURL:  job.Source.URL,
		StorageKey: job.Source.StorageKey,
		WholeAsset: job.WholeAsset,
	}
}

func (in Input) Job() orchestrator.Job {
	return orchestrator.Job{
		JobID:      in.JobID,
		AssetID:    in.AssetID,
		MediaKind:  types.MediaKind(in.MediaKind),
		Source:     extract.Source{URL: in.SourceURL, StorageKey: in.StorageKey},
		WholeAsset: in.WholeAsset,
	}
}

// WorkflowID is unique per job so a re-review of the same asset never
// collides with a running one.
func WorkflowID(job orchestrator.Job) string {
	return "review:" + job.AssetID + ":" + job.JobID
}
