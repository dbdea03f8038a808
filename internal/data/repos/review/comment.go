package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/dbctx"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

type CommentRepo interface {
	Append(dbc dbctx.Context, c *types.Comment) (uuid.UUID, error)
	ListByAsset(dbc dbctx.Context, assetID string) ([]*types.Comment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Comment, error)
	UpdateBody(dbc dbctx.Context, id uuid.UUID, body string) (*types.Comment, error)
	ToggleReactions(dbc dbctx.Context, id uuid.UUID, username string, labels []string) (types.Reactions, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DistinctAssetIDs(dbc dbctx.Context) ([]string, error)
}

type commentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
	return &commentRepo{
		db:  db,
		log: baseLog.With("repo", "CommentRepo"),
	}
}

func (r *commentRepo) Append(dbc dbctx.Context, c *types.Comment) (uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if c == nil || strings.TrimSpace(c.AssetID) == "" {
		return uuid.Nil, fmt.Errorf("append comment: %w: asset_id required", apierr.ErrInvalidArgument)
	}
	if err := transaction.WithContext(dbc.Ctx).Create(c).Error; err != nil {
		return uuid.Nil, err
	}
	return c.ID, nil
}

// ListByAsset returns the asset's comments oldest first.
func (r *commentRepo) ListByAsset(dbc dbctx.Context, assetID string) ([]*types.Comment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Comment
	if strings.TrimSpace(assetID) == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("asset_id = ?", assetID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Comment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.Comment
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("comment %s: %w", id, apierr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepo) UpdateBody(dbc dbctx.Context, id uuid.UUID, body string) (*types.Comment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Comment{}).
		Where("id = ?", id).
		Update("body", body)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("comment %s: %w", id, apierr.ErrNotFound)
	}
	return r.GetByID(dbc, id)
}

// ToggleReactions flips username under every label in one read-modify-write
// so concurrent toggles on the same comment do not drop each other.
func (r *commentRepo) ToggleReactions(dbc dbctx.Context, id uuid.UUID, username string, labels []string) (types.Reactions, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("toggle reactions: %w: username required", apierr.ErrInvalidArgument)
	}
	var out types.Reactions
	apply := func(tx *gorm.DB) error {
		q := tx.WithContext(dbc.Ctx).Where("id = ?", id)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var c types.Comment
		if err := q.First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("comment %s: %w", id, apierr.ErrNotFound)
			}
			return err
		}
		reactions, err := types.DecodeReactions(c.Reactions)
		if err != nil {
			return fmt.Errorf("decode reactions: %w", err)
		}
		for _, label := range labels {
			reactions.Toggle(strings.TrimSpace(label), username)
		}
		encoded, err := reactions.Encode()
		if err != nil {
			return err
		}
		if err := tx.WithContext(dbc.Ctx).
			Model(&types.Comment{}).
			Where("id = ?", id).
			Update("reactions", encoded).Error; err != nil {
			return err
		}
		out = reactions
		return nil
	}

	if dbc.Tx != nil {
		return out, apply(dbc.Tx)
	}
	if err := r.db.WithContext(dbc.Ctx).Transaction(apply); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *commentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("comment %s: %w", id, apierr.ErrNotFound)
	}
	return nil
}

func (r *commentRepo) DistinctAssetIDs(dbc dbctx.Context) ([]string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []string
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Comment{}).
		Where("asset_id <> ''").
		Distinct("asset_id").
		Order("asset_id ASC").
		Pluck("asset_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
