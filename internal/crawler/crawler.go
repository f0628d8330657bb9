// Crawler lấy danh sách repository có nhiều sao nhất trên GitHub,
// kèm theo số commit của từng tác giả trong cửa sổ thời gian cấu hình.
// Kết quả được sinh ra dưới dạng sequence lười: mỗi lần duyệt đều gọi API thật

package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/internal/githubapi"
	"github.com/thep200/github-saver/pkg/log"
)

// GitHub Search API chỉ cho phép truy cập 1000 kết quả đầu tiên
// và tối đa 100 phần tử mỗi trang
const (
	maxLimit    = 1000
	maxPageSize = 100
)

// ErrValidation báo tham số limit hoặc pageSize không hợp lệ
var ErrValidation = errors.New("invalid crawl parameters")

// AuthorCommits là số commit của một tác giả trong cửa sổ quan sát
type AuthorCommits struct {
	Author  string
	Commits int
}

// Repository là một phần tử trong bảng xếp hạng đã được làm giàu.
// Position là thứ hạng 1-based trong toàn bộ dãy, gán tại thời điểm
// phát hiện nên không phụ thuộc thứ tự hoàn thành của các request
type Repository struct {
	Name           string
	Owner          string
	Position       int
	Stars          int
	Watchers       int
	Forks          int
	Language       string
	AuthorsCommits []AuthorCommits
}

type Crawler struct {
	Logger log.Logger
	Config *cfg.Config
	Caller *githubapi.Caller

	// now có thể thay thế trong test để cố định cửa sổ commit
	now func() time.Time
}

func NewCrawler(logger log.Logger, config *cfg.Config) (*Crawler, error) {
	return &Crawler{
		Logger: logger,
		Config: config,
		Caller: githubapi.NewCaller(logger, config),
		now:    time.Now,
	}, nil
}

// Close giải phóng client HTTP dùng chung
func (c *Crawler) Close() {
	c.Caller.Close()
}

// GetRepositories lấy toàn bộ top repository vào một slice
func (c *Crawler) GetRepositories(ctx context.Context, limit int) ([]*Repository, error) {
	c.Logger.Info(ctx, "Lấy top %d repository trên GitHub", limit)
	pageSize := limit
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	repos := make([]*Repository, 0, limit)
	for repo, err := range c.Iterate(ctx, limit, pageSize) {
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// Iterate duyệt qua top repository theo từng trang listing.
// Sequence không thể duyệt lại: lần duyệt mới sẽ gọi API lại từ đầu.
// limit tối đa 1000 và pageSize trong khoảng (0, 100], nếu không
// sẽ nhận ErrValidation ngay mà không có request nào được gửi
func (c *Crawler) Iterate(ctx context.Context, limit int, pageSize int) iter.Seq2[*Repository, error] {
	return func(yield func(*Repository, error) bool) {
		if limit > maxLimit {
			yield(nil, fmt.Errorf("%w: github api khong cho phep lay qua %d repository", ErrValidation, maxLimit))
			return
		}
		if pageSize <= 0 || pageSize > maxPageSize {
			yield(nil, fmt.Errorf("%w: page size phai nam trong khoang (0, %d]", ErrValidation, maxPageSize))
			return
		}
		if limit == 0 {
			return
		}

		for offset := 0; offset < limit; offset += pageSize {
			items, err := c.fetchListingPage(ctx, offset/pageSize+1, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			c.Logger.Debug(ctx, "Nhận trang listing với %d phần tử (offset %d)", len(items), offset)

			// Cắt trang cuối khi limit không chia hết cho pageSize
			if len(items) > limit-offset {
				items = items[:limit-offset]
			}

			// Gán position trước khi fan-out để thứ hạng không phụ thuộc
			// thứ tự hoàn thành của worker
			jobs := make([]enrichJob, 0, len(items))
			for i, item := range items {
				jobs = append(jobs, enrichJob{item: item, position: offset + i + 1})
			}

			repos, err := Execute(ctx, c.enrich, jobs, c.Config.GithubApi.MaxConcurrentRequests)
			if err != nil {
				yield(nil, err)
				return
			}

			// Kết quả từ pool không có thứ tự, sắp xếp lại theo position
			sort.Slice(repos, func(i, j int) bool {
				return repos[i].Position < repos[j].Position
			})
			for _, repo := range repos {
				if !yield(repo, nil) {
					return
				}
			}
		}
	}
}

type enrichJob struct {
	item     githubapi.RepoItem
	position int
}

// fetchListingPage gọi api search/repositories cho một trang xếp hạng
func (c *Crawler) fetchListingPage(ctx context.Context, page int, perPage int) ([]githubapi.RepoItem, error) {
	query := url.Values{
		"q":        {"stars:>1"},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}
	resp, err := c.Caller.Call(ctx, "search/repositories", http.MethodGet, query)
	if err != nil {
		return nil, err
	}

	raw := &githubapi.RawSearchResponse{}
	if err := json.Unmarshal(resp.Data, raw); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return raw.Items, nil
}

// enrich lấy commit của repository và đếm theo tác giả
func (c *Crawler) enrich(ctx context.Context, job enrichJob) (*Repository, error) {
	owner := job.item.Owner.Login
	name := job.item.Name

	commits, err := c.fetchCommits(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	return &Repository{
		Name:           name,
		Owner:          owner,
		Position:       job.position,
		Stars:          int(job.item.StargazersCount),
		Watchers:       int(job.item.WatchersCount),
		Forks:          int(job.item.ForksCount),
		Language:       job.item.Language,
		AuthorsCommits: countAuthors(commits),
	}, nil
}

// countAuthors nhóm commit theo tác giả. Khóa là id tài khoản GitHub,
// nếu commit không gắn với tài khoản nào thì dùng email của commit author.
// Tổng các Commits luôn bằng số commit đã lấy về
func countAuthors(commits []githubapi.CommitResponse) []AuthorCommits {
	counts := make(map[string]int, len(commits))
	order := make([]string, 0, len(commits))
	for _, commit := range commits {
		key := commit.Commit.Author.Email
		if commit.Author != nil && commit.Author.ID != 0 {
			key = strconv.FormatInt(commit.Author.ID, 10)
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	authors := make([]AuthorCommits, 0, len(order))
	for _, key := range order {
		authors = append(authors, AuthorCommits{Author: key, Commits: counts[key]})
	}
	return authors
}
