package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/thep200/github-saver/internal/githubapi"
)

type commitPageRequest struct {
	endpoint string
	query    url.Values
}

// fetchCommits lấy toàn bộ commit của một repository trong cửa sổ thời gian
// cấu hình (mặc định 24 giờ gần nhất). Trang 1 được gọi trước để biết tổng số
// trang qua header Link, các trang còn lại được fan-out qua worker pool
func (c *Crawler) fetchCommits(ctx context.Context, owner string, name string) ([]githubapi.CommitResponse, error) {
	windowHours := c.Config.GithubApi.CommitWindowHours
	if windowHours <= 0 {
		windowHours = 24
	}
	since := c.now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	endpoint := fmt.Sprintf("repos/%s/%s/commits", owner, name)
	first, err := c.Caller.Call(ctx, endpoint, http.MethodGet, url.Values{
		"since": {since.Format(time.RFC3339)},
		"page":  {"1"},
	})
	if err != nil {
		return nil, err
	}

	commits, err := decodeCommits(first.Data)
	if err != nil {
		return nil, err
	}

	// Không có link "last" hoặc last = 1 nghĩa là chỉ có một trang
	lastPage := 1
	var lastUrl *url.URL
	if link, ok := first.Links["last"]; ok {
		if page, err := strconv.Atoi(link.Query().Get("page")); err == nil {
			lastPage = page
			lastUrl = link
		}
	}
	if lastPage <= 1 {
		return commits, nil
	}

	pages := make([]commitPageRequest, 0, lastPage-1)
	for page := 2; page <= lastPage; page++ {
		query := url.Values{}
		for key, values := range lastUrl.Query() {
			query[key] = values
		}
		query.Set("page", strconv.Itoa(page))
		pages = append(pages, commitPageRequest{endpoint: lastUrl.Path, query: query})
	}

	fanned, err := Execute(ctx, c.fetchCommitPage, pages, c.Config.GithubApi.MaxConcurrentRequests)
	if err != nil {
		return nil, err
	}

	// Thứ tự trang khi nối là không xác định và điều đó không sao:
	// downstream chỉ dùng tổng số commit theo tác giả
	for _, page := range fanned {
		commits = append(commits, page...)
	}
	return commits, nil
}

func (c *Crawler) fetchCommitPage(ctx context.Context, req commitPageRequest) ([]githubapi.CommitResponse, error) {
	resp, err := c.Caller.Call(ctx, req.endpoint, http.MethodGet, req.query)
	if err != nil {
		return nil, err
	}
	return decodeCommits(resp.Data)
}

func decodeCommits(data json.RawMessage) ([]githubapi.CommitResponse, error) {
	var commits []githubapi.CommitResponse
	if err := json.Unmarshal(data, &commits); err != nil {
		return nil, fmt.Errorf("failed to decode commits response: %w", err)
	}
	return commits, nil
}
