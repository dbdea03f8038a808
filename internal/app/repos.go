package app

import (
	"gorm.io/gorm"

	repos "github.com/AICC2024/video-review/internal/data/repos/review"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

type Repos struct {
	Comment  repos.CommentRepo
	UnitText repos.UnitTextRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Comment:  repos.NewCommentRepo(db, log),
		UnitText: repos.NewUnitTextRepo(db, log),
	}
}
