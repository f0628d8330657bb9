package model

import (
	"fmt"
	"time"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	Model
	ID       uint      `json:"id" gorm:"primaryKey"`
	Name     string    `json:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex:idx_repos_owner_name"`
	Owner    string    `json:"owner" gorm:"column:owner;type:varchar(255);not null;uniqueIndex:idx_repos_owner_name"`
	Stars    int       `json:"stars" gorm:"column:stars;default:0"`
	Watchers int       `json:"watchers" gorm:"column:watchers;default:0"`
	Forks    int       `json:"forks" gorm:"column:forks;default:0"`
	Language string    `json:"language" gorm:"column:language;type:varchar(255)"`
	Updated  time.Time `json:"updated" gorm:"column:updated;not null"`
}

func NewRepo(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Repo, error) {
	repo := &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return repo, nil
}

func (r *Repo) TableName() string {
	return "repos"
}

// CreateBatch ghi một batch snapshot trong một transaction.
// Repo đã tồn tại (trùng owner + name) thì cập nhật số liệu mới
func (r *Repo) CreateBatch(messages []RepoMessage) error {
	if len(messages) == 0 {
		return nil
	}

	db, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	repos := make([]Repo, 0, len(messages))
	for _, msg := range messages {
		repos = append(repos, Repo{
			Name:     TruncateString(msg.Name, 250),
			Owner:    TruncateString(msg.Owner, 250),
			Stars:    msg.Stars,
			Watchers: msg.Watchers,
			Forks:    msg.Forks,
			Language: TruncateString(msg.Language, 250),
			Updated:  msg.Updated,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"stars", "watchers", "forks", "language", "updated"}),
		}).CreateInBatches(repos, 100)

		if result.Error != nil {
			return fmt.Errorf("failed to batch create repositories: %w", result.Error)
		}

		return nil
	})
}
