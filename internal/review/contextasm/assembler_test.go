package contextasm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AICC2024/video-review/internal/data/repos/review"
	"github.com/AICC2024/video-review/internal/data/repos/testutil"
)

func TestBuildEmptyAsset(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	a := New(log, review.NewCommentRepo(db, log), review.NewUnitTextRepo(db, log))

	got, err := a.Build(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.PriorComments != "" || got.PriorUnits != "" || !got.Empty() {
		t.Fatalf("expected empty context, got %+v", got)
	}
}

func TestBuildOneCommentOneUnit(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	a := New(log, review.NewCommentRepo(db, log), review.NewUnitTextRepo(db, log))

	testutil.SeedComment(t, ctx, db, "deck-1", "alice", "Logo is cropped", testutil.IntPtr(2), time.Now().Add(-time.Minute))
	testutil.SeedUnitText(t, ctx, db, "deck-1", 2, "Welcome to onboarding")

	got, err := a.Build(ctx, "deck-1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.PriorComments != "Slide 2 - alice: Logo is cropped" {
		t.Fatalf("comments: %q", got.PriorComments)
	}
	if got.PriorUnits != "Unit 2:\nWelcome to onboarding" {
		t.Fatalf("units: %q", got.PriorUnits)
	}
}

func TestBuildOrdering(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	a := New(log, review.NewCommentRepo(db, log), review.NewUnitTextRepo(db, log))

	now := time.Now()
	testutil.SeedComment(t, ctx, db, "vid-1", "bob", "second", nil, now)
	testutil.SeedComment(t, ctx, db, "vid-1", "carol", "first", nil, now.Add(-time.Hour))
	testutil.SeedUnitText(t, ctx, db, "vid-1", 6, "c")
	testutil.SeedUnitText(t, ctx, db, "vid-1", 0, "a")
	testutil.SeedUnitText(t, ctx, db, "vid-1", 3, "b")

	got, err := a.Build(ctx, "vid-1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lines := strings.Split(got.PriorComments, "\n")
	if len(lines) != 2 || lines[0] != "0:00 - carol: first" || lines[1] != "0:00 - bob: second" {
		t.Fatalf("comment order: %q", lines)
	}
	if got.PriorUnits != "Unit 0:\na\n\nUnit 3:\nb\n\nUnit 6:\nc" {
		t.Fatalf("unit order: %q", got.PriorUnits)
	}
}
