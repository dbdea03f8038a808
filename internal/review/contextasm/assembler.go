package contextasm

import (
	"context"
	"fmt"
	"strings"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/platform/dbctx"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

// Context is the grounding text gathered for an asset.
type Context struct {
	PriorComments string
	PriorUnits    string
}

func (c Context) Empty() bool {
	return c.PriorComments == "" && c.PriorUnits == ""
}

type commentLister interface {
	ListByAsset(dbc dbctx.Context, assetID string) ([]*types.Comment, error)
}

type unitTextLister interface {
	ListByAsset(dbc dbctx.Context, assetID string) ([]*types.UnitText, error)
}

type Assembler struct {
	log      *logger.Logger
	comments commentLister
	units    unitTextLister
}

func New(log *logger.Logger, comments commentLister, units unitTextLister) *Assembler {
	return &Assembler{
		log:      log.With("component", "ContextAssembler"),
		comments: comments,
		units:    units,
	}
}

// Build reads prior comments (oldest first) and unit text (by index) for
// assetID. An asset with no history yields an empty Context.
func (a *Assembler) Build(ctx context.Context, assetID string) (Context, error) {
	dbc := dbctx.Context{Ctx: ctx}
	comments, err := a.comments.ListByAsset(dbc, assetID)
	if err != nil {
		return Context{}, fmt.Errorf("list comments: %w", err)
	}
	units, err := a.units.ListByAsset(dbc, assetID)
	if err != nil {
		return Context{}, fmt.Errorf("list unit text: %w", err)
	}

	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, fmt.Sprintf("%s - %s: %s", commentLabel(c), c.Author, c.Body))
	}
	blocks := make([]string, 0, len(units))
	for _, u := range units {
		blocks = append(blocks, fmt.Sprintf("Unit %d:\n%s", u.UnitIndex, u.Text))
	}

	out := Context{
		PriorComments: strings.Join(lines, "\n"),
		PriorUnits:    strings.Join(blocks, "\n\n"),
	}
	a.log.Debug("context built", "asset_id", assetID, "comments", len(lines), "units", len(blocks))
	return out, nil
}

func commentLabel(c *types.Comment) string {
	switch {
	case c.Timestamp != nil && strings.TrimSpace(*c.Timestamp) != "":
		return strings.TrimSpace(*c.Timestamp)
	case c.UnitIndex != nil:
		return fmt.Sprintf("Slide %d", *c.UnitIndex)
	default:
		return "0:00"
	}
}
