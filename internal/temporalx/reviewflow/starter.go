package reviewflow

import (
	"context"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
)

type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

// Starter is the dispatch backend that hands jobs to Temporal.
type Starter struct {
	log       *logger.Logger
	tc        workflowStarter
	taskQueue string
}

func NewStarter(log *logger.Logger, tc workflowStarter, taskQueue string) *Starter {
	return &Starter{log: log.With("component", "ReviewWorkflowStarter"), tc: tc, taskQueue: taskQueue}
}

func (s *Starter) Name() string { return "temporal" }

func (s *Starter) Start(ctx context.Context, job orchestrator.Job) error {
	run, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(job),
		TaskQueue: s.taskQueue,
	}, WorkflowName, InputFromJob(job))
	if err != nil {
		return err
	}
	s.log.Debug("review workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
