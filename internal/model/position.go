package model

import (
	"fmt"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/log"
	"gorm.io/gorm"
)

// Position lưu thứ hạng theo ngày của repository trong bảng xếp hạng
type Position struct {
	Model
	ID       uint   `json:"id" gorm:"primaryKey"`
	Date     string `json:"date" gorm:"column:date;type:date;not null;index"`
	Repo     string `json:"repo" gorm:"column:repo;type:varchar(511);not null"`
	Position int    `json:"position" gorm:"column:position;not null"`
}

func NewPosition(config *cfg.Config, logger log.Logger, db *db.Mysql) (*Position, error) {
	position := &Position{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  db,
		},
	}
	return position, nil
}

func (p *Position) TableName() string {
	return "repo_positions"
}

func (p *Position) CreateBatch(messages []PositionMessage) error {
	if len(messages) == 0 {
		return nil
	}

	db, err := p.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	positions := make([]Position, 0, len(messages))
	for _, msg := range messages {
		positions = append(positions, Position{
			Date:     msg.Date,
			Repo:     TruncateString(msg.Repo, 500),
			Position: msg.Position,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.CreateInBatches(positions, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch create positions: %w", result.Error)
		}
		return nil
	})
}
