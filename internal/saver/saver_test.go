package saver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/internal/crawler"
	"github.com/thep200/github-saver/internal/model"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/log"
)

// captureSink ghi lại các batch nhận được thay vì ghi xuống store thật.
// delay và maxInFlight dùng để kiểm tra ràng buộc một thao tác ghi đang bay
type captureSink[T any] struct {
	mu    sync.Mutex
	calls [][]T
	err   error
	delay time.Duration

	inFlight    int32
	maxInFlight int32
}

func (c *captureSink[T]) Insert(ctx context.Context, rows []T) error {
	cur := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&c.maxInFlight)
		if cur <= seen || atomic.CompareAndSwapInt32(&c.maxInFlight, seen, cur) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return c.err
	}

	copied := make([]T, len(rows))
	copy(copied, rows)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, copied)
	return nil
}

func (c *captureSink[T]) batchSizes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sizes := make([]int, 0, len(c.calls))
	for _, call := range c.calls {
		sizes = append(sizes, len(call))
	}
	return sizes
}

func (c *captureSink[T]) allRows() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rows []T
	for _, call := range c.calls {
		rows = append(rows, call...)
	}
	return rows
}

type saverFixture struct {
	saver        *Saver
	repos        *captureSink[model.RepoMessage]
	positions    *captureSink[model.PositionMessage]
	authorCommit *captureSink[model.AuthorCommitMessage]
}

func newTestSaver(t *testing.T) *saverFixture {
	t.Helper()

	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	f := &saverFixture{
		repos:        &captureSink[model.RepoMessage]{},
		positions:    &captureSink[model.PositionMessage]{},
		authorCommit: &captureSink[model.AuthorCommitMessage]{},
	}
	f.saver = &Saver{
		Logger:           logger,
		Config:           config,
		repoSink:         f.repos,
		positionSink:     f.positions,
		authorCommitSink: f.authorCommit,
		initialized:      true,
		now:              func() time.Time { return time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC) },
	}
	return f
}

// reposSeq sinh sequence n repository với position 1..n, mỗi repo một tác giả
func reposSeq(n int) iter.Seq2[*crawler.Repository, error] {
	return func(yield func(*crawler.Repository, error) bool) {
		for i := 1; i <= n; i++ {
			repo := &crawler.Repository{
				Name:     fmt.Sprintf("repo-%d", i),
				Owner:    fmt.Sprintf("owner-%d", i),
				Position: i,
				Stars:    1000 - i,
				Watchers: 500 - i,
				Forks:    100 - i,
				Language: "Go",
				AuthorsCommits: []crawler.AuthorCommits{
					{Author: fmt.Sprintf("author-%d", i), Commits: i},
				},
			}
			if !yield(repo, nil) {
				return
			}
		}
	}
}

func TestSaveTopReposBatching(t *testing.T) {
	f := newTestSaver(t)

	err := f.saver.SaveTopRepos(context.Background(), reposSeq(7), 3)
	require.NoError(t, err)

	// 7 phần tử với batch 3: hai batch đầy và một batch lẻ cuối
	assert.Equal(t, []int{3, 3, 1}, f.repos.batchSizes())
	assert.Equal(t, []int{3, 3, 1}, f.positions.batchSizes())

	var positions []int
	for _, row := range f.positions.allRows() {
		positions = append(positions, row.Position)
		assert.Equal(t, "2024-01-02", row.Date)
		assert.Equal(t, fmt.Sprintf("owner-%d/repo-%d", row.Position, row.Position), row.Repo)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, positions)

	authorRows := f.authorCommit.allRows()
	require.Len(t, authorRows, 7)
	assert.Equal(t, "author-1", authorRows[0].Author)
	assert.Equal(t, 1, authorRows[0].CommitsNum)
	assert.Equal(t, "owner-1/repo-1", authorRows[0].Repo)
}

func TestSaveTopReposFlattensAuthorRows(t *testing.T) {
	f := newTestSaver(t)

	seq := func(yield func(*crawler.Repository, error) bool) {
		yield(&crawler.Repository{
			Name:     "repo",
			Owner:    "owner",
			Position: 1,
			AuthorsCommits: []crawler.AuthorCommits{
				{Author: "101", Commits: 2},
				{Author: "b@b.com", Commits: 1},
			},
		}, nil)
	}

	err := f.saver.SaveTopRepos(context.Background(), seq, 10)
	require.NoError(t, err)

	// Một repo có hai tác giả sinh ra hai bản ghi author commit
	assert.Equal(t, []int{1}, f.repos.batchSizes())
	assert.Equal(t, []int{2}, f.authorCommit.batchSizes())
}

func TestInitPropagatesDatabaseError(t *testing.T) {
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	// Không có MySQL nào lắng nghe tại địa chỉ này
	config.Mysql.Host = "127.0.0.1"
	config.Mysql.Port = "1"

	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	mysql, err := db.NewMysql(config)
	require.NoError(t, err)

	s, err := NewSaver(logger, config, mysql)
	require.NoError(t, err)

	require.Error(t, s.Init(context.Background()))
	// Init thất bại thì saver vẫn chưa dùng được
	err = s.SaveTopRepos(context.Background(), reposSeq(1), 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSaveTopReposRequiresInit(t *testing.T) {
	f := newTestSaver(t)
	f.saver.initialized = false

	err := f.saver.SaveTopRepos(context.Background(), reposSeq(3), 3)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Empty(t, f.repos.batchSizes())
}

func TestSaveTopReposEmptySequence(t *testing.T) {
	f := newTestSaver(t)

	err := f.saver.SaveTopRepos(context.Background(), reposSeq(0), 3)
	require.NoError(t, err)
	assert.Empty(t, f.repos.batchSizes())
	assert.Empty(t, f.positions.batchSizes())
	assert.Empty(t, f.authorCommit.batchSizes())
}

func TestSaveTopReposSinkErrorAborts(t *testing.T) {
	f := newTestSaver(t)
	wantErr := errors.New("mysql is down")
	f.repos.err = wantErr

	err := f.saver.SaveTopRepos(context.Background(), reposSeq(7), 3)
	assert.ErrorIs(t, err, wantErr)
}

func TestSaveTopReposSequenceErrorPropagates(t *testing.T) {
	f := newTestSaver(t)
	wantErr := errors.New("github api unavailable")

	seq := func(yield func(*crawler.Repository, error) bool) {
		if !yield(&crawler.Repository{Name: "repo", Owner: "owner", Position: 1}, nil) {
			return
		}
		yield(nil, wantErr)
	}

	err := f.saver.SaveTopRepos(context.Background(), seq, 5)
	assert.ErrorIs(t, err, wantErr)
}

func TestSaveTopReposSingleWriteInFlight(t *testing.T) {
	f := newTestSaver(t)
	f.repos.delay = 20 * time.Millisecond

	err := f.saver.SaveTopRepos(context.Background(), reposSeq(12), 3)
	require.NoError(t, err)

	require.Equal(t, []int{3, 3, 3, 3}, f.repos.batchSizes())
	// Các lần ghi không được chồng lên nhau dù batch mới đã đầy
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.repos.maxInFlight))
}
