package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/pkg/log"
)

// fakeGithub giả lập hai endpoint: search/repositories và
// repos/{owner}/{repo}/commits, đủ cho crawler hoạt động như thật
type fakeGithub struct {
	listingCalls int32
	commitCalls  int32

	// commits trả về cho mọi repository, theo trang (mặc định một trang rỗng)
	commitPages []string
}

func (f *fakeGithub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.listingCalls, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

		items := make([]map[string]interface{}, 0, perPage)
		for i := 0; i < perPage; i++ {
			rank := (page-1)*perPage + i + 1
			items = append(items, map[string]interface{}{
				"id":               rank,
				"name":             fmt.Sprintf("repo-%d", rank),
				"full_name":        fmt.Sprintf("owner-%d/repo-%d", rank, rank),
				"owner":            map[string]interface{}{"login": fmt.Sprintf("owner-%d", rank), "id": rank},
				"stargazers_count": 100000 - rank,
				"watchers_count":   50000 - rank,
				"forks_count":      10000 - rank,
				"language":         "Go",
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count":        1000,
			"incomplete_results": false,
			"items":              items,
		})
	})
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.commitCalls, 1)
		if !strings.HasSuffix(r.URL.Path, "/commits") {
			http.NotFound(w, r)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}

		pages := f.commitPages
		if len(pages) == 0 {
			pages = []string{`[]`}
		}
		if page == 1 && len(pages) > 1 {
			w.Header().Set("Link", fmt.Sprintf(`<http://fake%s?since=%s&page=%d>; rel="last"`,
				r.URL.Path, r.URL.Query().Get("since"), len(pages)))
		}
		if page > len(pages) {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, pages[page-1])
	})
	return mux
}

func newTestCrawler(t *testing.T, fake *fakeGithub) *Crawler {
	t.Helper()

	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	config.GithubApi.ApiUrl = server.URL
	config.GithubApi.ThrottleDelay = 1
	config.GithubApi.RequestsPerSecond = 1000
	config.GithubApi.MaxConcurrentRequests = 5

	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	c, err := NewCrawler(logger, config)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	c.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestIteratePositionsAreContiguousAndOrdered(t *testing.T) {
	fake := &fakeGithub{}
	c := newTestCrawler(t, fake)

	var positions []int
	for repo, err := range c.Iterate(context.Background(), 7, 3) {
		require.NoError(t, err)
		positions = append(positions, repo.Position)
		assert.Equal(t, fmt.Sprintf("repo-%d", repo.Position), repo.Name)
		assert.Equal(t, fmt.Sprintf("owner-%d", repo.Position), repo.Owner)
	}

	// Phần tử thứ N luôn có position N, trang cuối bị cắt còn 1 phần tử
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, positions)
	// ceil(7/3) = 3 lần gọi listing, không có lần gọi thừa
	assert.Equal(t, int32(3), atomic.LoadInt32(&fake.listingCalls))
	// Mỗi phần tử một lần gọi commits
	assert.Equal(t, int32(7), atomic.LoadInt32(&fake.commitCalls))
}

func TestIterateLimitZeroIssuesNoRequest(t *testing.T) {
	fake := &fakeGithub{}
	c := newTestCrawler(t, fake)

	count := 0
	for _, err := range c.Iterate(context.Background(), 0, 10) {
		require.NoError(t, err)
		count++
	}

	assert.Zero(t, count)
	assert.Zero(t, atomic.LoadInt32(&fake.listingCalls))
}

func TestIterateValidation(t *testing.T) {
	testCases := []struct {
		name     string
		limit    int
		pageSize int
	}{
		{name: "limit above api ceiling", limit: 1001, pageSize: 10},
		{name: "page size above api ceiling", limit: 10, pageSize: 101},
		{name: "page size zero", limit: 10, pageSize: 0},
		{name: "page size negative", limit: 10, pageSize: -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeGithub{}
			c := newTestCrawler(t, fake)

			var gotErr error
			for _, err := range c.Iterate(context.Background(), tc.limit, tc.pageSize) {
				gotErr = err
				break
			}

			assert.ErrorIs(t, gotErr, ErrValidation)
			// Từ chối đồng bộ, không có request nào được gửi
			assert.Zero(t, atomic.LoadInt32(&fake.listingCalls))
			assert.Zero(t, atomic.LoadInt32(&fake.commitCalls))
		})
	}
}

func TestIterateGroupsCommitAuthors(t *testing.T) {
	fake := &fakeGithub{
		commitPages: []string{`[
			{"sha": "a1", "author": {"login": "u1", "id": 101}, "commit": {"author": {"name": "U1", "email": "u1@x.com"}}},
			{"sha": "a2", "author": {"login": "u1", "id": 101}, "commit": {"author": {"name": "U1", "email": "u1@x.com"}}},
			{"sha": "a3", "author": null, "commit": {"author": {"name": "B", "email": "b@b.com"}}}
		]`},
	}
	c := newTestCrawler(t, fake)

	var repos []*Repository
	for repo, err := range c.Iterate(context.Background(), 1, 1) {
		require.NoError(t, err)
		repos = append(repos, repo)
	}
	require.Len(t, repos, 1)

	counts := map[string]int{}
	total := 0
	for _, author := range repos[0].AuthorsCommits {
		counts[author.Author] = author.Commits
		total += author.Commits
	}

	// Có id thì nhóm theo id, không có thì nhóm theo email, lặp lại được gộp
	assert.Equal(t, map[string]int{"101": 2, "b@b.com": 1}, counts)
	// Tổng số commit theo tác giả bằng tổng số commit đã lấy
	assert.Equal(t, 3, total)
}

func TestIterateAggregatesAllCommitPages(t *testing.T) {
	fake := &fakeGithub{
		commitPages: []string{
			`[{"sha": "c1", "author": {"id": 7}, "commit": {"author": {"email": "x@x"}}},
			  {"sha": "c2", "author": {"id": 7}, "commit": {"author": {"email": "x@x"}}}]`,
			`[{"sha": "c3", "author": {"id": 7}, "commit": {"author": {"email": "x@x"}}},
			  {"sha": "c4", "author": {"id": 7}, "commit": {"author": {"email": "x@x"}}}]`,
			`[{"sha": "c5", "author": {"id": 7}, "commit": {"author": {"email": "x@x"}}}]`,
		},
	}
	c := newTestCrawler(t, fake)

	var repos []*Repository
	for repo, err := range c.Iterate(context.Background(), 1, 1) {
		require.NoError(t, err)
		repos = append(repos, repo)
	}
	require.Len(t, repos, 1)

	require.Len(t, repos[0].AuthorsCommits, 1)
	assert.Equal(t, "7", repos[0].AuthorsCommits[0].Author)
	assert.Equal(t, 5, repos[0].AuthorsCommits[0].Commits)

	// 1 listing + 3 trang commit
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.listingCalls))
	assert.Equal(t, int32(3), atomic.LoadInt32(&fake.commitCalls))
}

func TestGetRepositoriesCollectsIterate(t *testing.T) {
	fake := &fakeGithub{}
	c := newTestCrawler(t, fake)

	repos, err := c.GetRepositories(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, repos, 5)
	for i, repo := range repos {
		assert.Equal(t, i+1, repo.Position)
	}
	// limit < 100 nên tất cả nằm trong một trang listing
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.listingCalls))
}
