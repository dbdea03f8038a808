package domain

import "github.com/AICC2024/video-review/internal/domain/review"

type (
	MediaKind = review.MediaKind
	Comment   = review.Comment
	UnitText  = review.UnitText
	Reactions = review.Reactions
)

const (
	MediaDocument   = review.MediaDocument
	MediaStoryboard = review.MediaStoryboard
	MediaVideo      = review.MediaVideo
	AgentAuthor     = review.AgentAuthor
)

var (
	ParseMediaKind  = review.ParseMediaKind
	DecodeReactions = review.DecodeReactions
)
