package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-adaptive/internal/data/repos"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

type Repos = repos.Set

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return repos.NewSet(db, log)
}
