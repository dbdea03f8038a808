package review

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnitText is the extracted text of one unit. For paged assets UnitIndex is
// the 1-based page; for video it is the offset in seconds and Text holds the
// narration snippet assigned to that frame.
type UnitText struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID   string    `gorm:"column:asset_id;not null;index:idx_review_unit_text_asset_unit,unique,priority:1" json:"asset_id"`
	UnitIndex int       `gorm:"column:unit_index;not null;index:idx_review_unit_text_asset_unit,unique,priority:2" json:"unit_index"`
	Text      string    `gorm:"column:text;type:text;not null;default:''" json:"text"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (UnitText) TableName() string { return "review_unit_text" }

func (u *UnitText) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
