package review

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/dbctx"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

type UnitTextRepo interface {
	Upsert(dbc dbctx.Context, assetID string, unitIndex int, text string) error
	ListByAsset(dbc dbctx.Context, assetID string) ([]*types.UnitText, error)
}

type unitTextRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnitTextRepo(db *gorm.DB, baseLog *logger.Logger) UnitTextRepo {
	return &unitTextRepo{
		db:  db,
		log: baseLog.With("repo", "UnitTextRepo"),
	}
}

// Upsert writes the text for (assetID, unitIndex), replacing any earlier
// extraction of the same unit in place.
func (r *unitTextRepo) Upsert(dbc dbctx.Context, assetID string, unitIndex int, text string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(assetID) == "" {
		return fmt.Errorf("upsert unit text: %w: asset_id required", apierr.ErrInvalidArgument)
	}
	row := &types.UnitText{AssetID: assetID, UnitIndex: unitIndex, Text: text}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}, {Name: "unit_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "updated_at"}),
		}).
		Create(row).Error
}

func (r *unitTextRepo) ListByAsset(dbc dbctx.Context, assetID string) ([]*types.UnitText, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.UnitText
	if strings.TrimSpace(assetID) == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("asset_id = ?", assetID).
		Order("unit_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
