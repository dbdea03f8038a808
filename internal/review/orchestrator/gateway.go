package orchestrator

import (
	"context"

	"github.com/google/uuid"

	repos "github.com/AICC2024/video-review/internal/data/repos/review"
	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/platform/dbctx"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

// Store is what a job writes. Each call commits on its own so units that
// finished before a later failure stay persisted.
type Store interface {
	UpsertUnitText(ctx context.Context, assetID string, index int, text string) error
	AppendComment(ctx context.Context, c *types.Comment) (uuid.UUID, error)
}

// Gateway is the Store over the comment and unit text repositories.
type Gateway struct {
	comments repos.CommentRepo
	units    repos.UnitTextRepo
}

func NewGateway(comments repos.CommentRepo, units repos.UnitTextRepo) *Gateway {
	return &Gateway{comments: comments, units: units}
}

func (g *Gateway) UpsertUnitText(ctx context.Context, assetID string, index int, text string) error {
	if err := g.units.Upsert(dbctx.Context{Ctx: ctx}, assetID, index, text); err != nil {
		return &reviewerr.PersistenceError{Op: "upsert_unit_text", Err: err}
	}
	return nil
}

func (g *Gateway) AppendComment(ctx context.Context, c *types.Comment) (uuid.UUID, error) {
	id, err := g.comments.Append(dbctx.Context{Ctx: ctx}, c)
	if err != nil {
		return uuid.Nil, &reviewerr.PersistenceError{Op: "append_comment", Err: err}
	}
	return id, nil
}
