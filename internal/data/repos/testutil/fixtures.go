package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/AICC2024/video-review/internal/domain"
)

func SeedComment(tb testing.TB, ctx context.Context, tx *gorm.DB, assetID, author, body string, unitIndex *int, createdAt time.Time) *types.Comment {
	tb.Helper()
	c := &types.Comment{
		AssetID:   assetID,
		UnitIndex: unitIndex,
		Body:      body,
		Author:    author,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed comment: %v", err)
	}
	return c
}

func SeedUnitText(tb testing.TB, ctx context.Context, tx *gorm.DB, assetID string, index int, text string) *types.UnitText {
	tb.Helper()
	u := &types.UnitText{AssetID: assetID, UnitIndex: index, Text: text}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit text: %v", err)
	}
	return u
}

func IntPtr(v int) *int { return &v }

func StrPtr(v string) *string { return &v }
