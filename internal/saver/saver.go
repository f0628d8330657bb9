// Saver gom sequence repository từ crawler thành các batch cố định và ghi
// xuống store. Trong khi một batch đang được ghi, batch tiếp theo vẫn được
// tích lũy, nhưng tối đa chỉ có một thao tác ghi đang bay tại một thời điểm

package saver

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/internal/crawler"
	"github.com/thep200/github-saver/internal/model"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/kafka"
	"github.com/thep200/github-saver/pkg/log"
	"golang.org/x/sync/errgroup"
)

// ErrNotInitialized báo Saver được sử dụng trước khi gọi Init
var ErrNotInitialized = errors.New("saver is not initialized, call Init first")

type Saver struct {
	Logger log.Logger
	Config *cfg.Config
	Mysql  *db.Mysql

	repoSink         Sink[model.RepoMessage]
	positionSink     Sink[model.PositionMessage]
	authorCommitSink Sink[model.AuthorCommitMessage]

	producers   []*kafka.Producer
	initialized bool
	now         func() time.Time
}

func NewSaver(logger log.Logger, config *cfg.Config, mysql *db.Mysql) (*Saver, error) {
	s := &Saver{
		Logger: logger,
		Config: config,
		Mysql:  mysql,
		now:    time.Now,
	}

	if config.Saver.UseKafka {
		repoProducer := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicRepo)
		positionProducer := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicPosition)
		authorCommitProducer := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicAuthorCommit)
		s.producers = []*kafka.Producer{repoProducer, positionProducer, authorCommitProducer}
		s.repoSink = &kafkaSink[model.RepoMessage]{producer: repoProducer, key: "repo"}
		s.positionSink = &kafkaSink[model.PositionMessage]{producer: positionProducer, key: "position"}
		s.authorCommitSink = &kafkaSink[model.AuthorCommitMessage]{producer: authorCommitProducer, key: "author_commit"}
		return s, nil
	}

	repoMd, err := model.NewRepo(config, logger, mysql)
	if err != nil {
		return nil, err
	}
	positionMd, err := model.NewPosition(config, logger, mysql)
	if err != nil {
		return nil, err
	}
	authorCommitMd, err := model.NewAuthorCommit(config, logger, mysql)
	if err != nil {
		return nil, err
	}
	s.repoSink = &repoSink{md: repoMd}
	s.positionSink = &positionSink{md: positionMd}
	s.authorCommitSink = &authorCommitSink{md: authorCommitMd}
	return s, nil
}

// Init migrate các bảng đích. Bắt buộc gọi trước SaveTopRepos
func (s *Saver) Init(ctx context.Context) error {
	if !s.Config.Saver.UseKafka {
		repoMd, err := model.NewRepo(s.Config, s.Logger, s.Mysql)
		if err != nil {
			return err
		}
		positionMd, err := model.NewPosition(s.Config, s.Logger, s.Mysql)
		if err != nil {
			return err
		}
		authorCommitMd, err := model.NewAuthorCommit(s.Config, s.Logger, s.Mysql)
		if err != nil {
			return err
		}
		if err := s.Mysql.Migrate(repoMd, positionMd, authorCommitMd); err != nil {
			return err
		}
	}
	s.initialized = true
	return nil
}

// Close giải phóng các producer Kafka nếu có
func (s *Saver) Close() error {
	var firstErr error
	for _, producer := range s.producers {
		if err := producer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SaveTopRepos tiêu thụ sequence từ crawler và ghi theo batch.
// Batch đầy thì được ghi bất đồng bộ trong khi batch kế tiếp tích lũy;
// trước khi bắt đầu lần ghi mới phải chờ lần ghi trước xong.
// Khi sequence cạn, batch lẻ còn lại được ghi đồng bộ
func (s *Saver) SaveTopRepos(ctx context.Context, seq iter.Seq2[*crawler.Repository, error], batchSize int) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	s.Logger.Info(ctx, "Bắt đầu lưu top repository theo batch %d", batchSize)

	var pending chan error
	waitPending := func() error {
		if pending == nil {
			return nil
		}
		err := <-pending
		pending = nil
		return err
	}

	totalFetched := 0
	batch := make([]*crawler.Repository, 0, batchSize)
	for repo, err := range seq {
		if err != nil {
			if werr := waitPending(); werr != nil {
				s.Logger.Error(ctx, "Lỗi ghi batch trong khi crawl đã thất bại: %v", werr)
			}
			return err
		}

		batch = append(batch, repo)
		totalFetched++
		if len(batch) >= batchSize {
			// Chỉ cho phép một thao tác ghi đang bay
			if err := waitPending(); err != nil {
				return err
			}
			pending = s.saveAsync(ctx, batch)
			batch = make([]*crawler.Repository, 0, batchSize)
		}
	}

	if err := waitPending(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := s.save(ctx, batch); err != nil {
			return err
		}
	}

	s.Logger.Info(ctx, "Đã lưu %d top repository", totalFetched)
	return nil
}

func (s *Saver) saveAsync(ctx context.Context, batch []*crawler.Repository) chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.save(ctx, batch)
	}()
	return done
}

// save tách batch thành ba tập bản ghi và ghi song song vào ba bảng.
// Một bảng ghi lỗi thì cả thao tác lưu thất bại; các bảng đã ghi xong
// không được rollback (ba bảng không nằm chung một transaction)
func (s *Saver) save(ctx context.Context, repos []*crawler.Repository) error {
	now := s.now().UTC()
	date := now.Format("2006-01-02")

	repoRows := make([]model.RepoMessage, 0, len(repos))
	positionRows := make([]model.PositionMessage, 0, len(repos))
	authorCommitRows := make([]model.AuthorCommitMessage, 0, len(repos))
	for _, repo := range repos {
		repoRef := repo.Owner + "/" + repo.Name
		repoRows = append(repoRows, model.RepoMessage{
			Name:     repo.Name,
			Owner:    repo.Owner,
			Stars:    repo.Stars,
			Watchers: repo.Watchers,
			Forks:    repo.Forks,
			Language: repo.Language,
			Updated:  now,
		})
		positionRows = append(positionRows, model.PositionMessage{
			Date:     date,
			Repo:     repoRef,
			Position: repo.Position,
		})
		for _, author := range repo.AuthorsCommits {
			authorCommitRows = append(authorCommitRows, model.AuthorCommitMessage{
				Date:       date,
				Repo:       repoRef,
				Author:     author.Author,
				CommitsNum: author.Commits,
			})
		}
	}

	s.Logger.Debug(ctx, "Ghi batch: %d repo, %d position, %d author commit", len(repoRows), len(positionRows), len(authorCommitRows))

	g, ctx := errgroup.WithContext(ctx)
	if len(repoRows) > 0 {
		g.Go(func() error { return s.repoSink.Insert(ctx, repoRows) })
	}
	if len(positionRows) > 0 {
		g.Go(func() error { return s.positionSink.Insert(ctx, positionRows) })
	}
	if len(authorCommitRows) > 0 {
		g.Go(func() error { return s.authorCommitSink.Insert(ctx, authorCommitRows) })
	}
	return g.Wait()
}
