package saver

import (
	"context"

	"github.com/thep200/github-saver/internal/model"
	"github.com/thep200/github-saver/pkg/kafka"
)

// Sink là đích ghi cho một loại bản ghi. Mỗi lần Insert là một lần
// ghi nguyên tử cho cả batch của bảng đó
type Sink[T any] interface {
	Insert(ctx context.Context, rows []T) error
}

// Các sink ghi thẳng vào MySQL qua model

type repoSink struct {
	md *model.Repo
}

func (s *repoSink) Insert(ctx context.Context, rows []model.RepoMessage) error {
	return s.md.CreateBatch(rows)
}

type positionSink struct {
	md *model.Position
}

func (s *positionSink) Insert(ctx context.Context, rows []model.PositionMessage) error {
	return s.md.CreateBatch(rows)
}

type authorCommitSink struct {
	md *model.AuthorCommit
}

func (s *authorCommitSink) Insert(ctx context.Context, rows []model.AuthorCommitMessage) error {
	return s.md.CreateBatch(rows)
}

// kafkaSink đẩy cả batch thành một message lên topic tương ứng,
// consumer sẽ thực hiện phần ghi database
type kafkaSink[T any] struct {
	producer *kafka.Producer
	key      string
}

func (s *kafkaSink[T]) Insert(ctx context.Context, rows []T) error {
	return s.producer.Publish(ctx, s.key, rows)
}
