package model

import (
	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/log"
)

type Model struct {
	Config *cfg.Config `gorm:"-"`
	Logger log.Logger  `gorm:"-"`
	Mysql  *db.Mysql   `gorm:"-"`
}
