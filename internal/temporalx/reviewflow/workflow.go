package reviewflow

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs one review as a single activity. The activity is not
// retried: a rerun would post a second set of agent comments.
func Workflow(ctx workflow.Context, in Input) (Output, error) {
	if strings.TrimSpace(in.AssetID) == "" {
		return Output{}, fmt.Errorf("reviewflow: missing asset_id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var out Output
	if err := workflow.ExecuteActivity(ctx, ActivityRun, in).Get(ctx, &out); err != nil {
		return out, err
	}
	workflow.GetLogger(ctx).Info("review workflow done",
		"asset_id", in.AssetID,
		"comments_written", out.CommentsWritten,
		"units_failed", out.UnitsFailed,
	)
	return out, nil
}
