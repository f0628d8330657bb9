package model

import (
	"fmt"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/log"
	"gorm.io/gorm"
)

// AuthorCommit lưu số commit theo ngày của một tác giả trên một repository
type AuthorCommit struct {
	Model
	ID         uint   `json:"id" gorm:"primaryKey"`
	Date       string `json:"date" gorm:"column:date;type:date;not null;index"`
	Repo       string `json:"repo" gorm:"column:repo;type:varchar(511);not null"`
	Author     string `json:"author" gorm:"column:author;type:varchar(255);not null"`
	CommitsNum int    `json:"commits_num" gorm:"column:commits_num;not null"`
}

func NewAuthorCommit(config *cfg.Config, logger log.Logger, db *db.Mysql) (*AuthorCommit, error) {
	authorCommit := &AuthorCommit{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return authorCommit, nil
}

func (a *AuthorCommit) TableName() string {
	return "repo_author_commits"
}

func (a *AuthorCommit) CreateBatch(messages []AuthorCommitMessage) error {
	if len(messages) == 0 {
		return nil
	}

	db, err := a.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	authorCommits := make([]AuthorCommit, 0, len(messages))
	for _, msg := range messages {
		authorCommits = append(authorCommits, AuthorCommit{
			Date:       msg.Date,
			Repo:       TruncateString(msg.Repo, 500),
			Author:     TruncateString(msg.Author, 250),
			CommitsNum: msg.CommitsNum,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.CreateInBatches(authorCommits, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch create author commits: %w", result.Error)
		}
		return nil
	})
}
