package repos

import (
	"github.com/AICC2024/video-review/internal/data/repos/review"
)

type (
	CommentRepo  = review.CommentRepo
	UnitTextRepo = review.UnitTextRepo
)

var (
	NewCommentRepo  = review.NewCommentRepo
	NewUnitTextRepo = review.NewUnitTextRepo
)
