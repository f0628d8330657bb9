// Gói githubapi cung cấp một caller cho GitHub API, để lấy dữ liệu repository.
// Caller chịu trách nhiệm thực hiện yêu cầu API, giữ hai lớp giới hạn:
// semaphore cho số request đồng thời và rate limiter cho số request mỗi giây.
// Nó xử lý xác thực bằng mã thông báo truy cập nếu được cung cấp.

package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/internal/limiter"
	"github.com/thep200/github-saver/pkg/log"
)

const maxAttempts = 5

// Response ghép payload đã nhận với metadata phân trang từ header Link
type Response struct {
	Data  json.RawMessage
	Links map[string]*url.URL
}

type Caller struct {
	Logger      log.Logger
	Config      *cfg.Config
	rateLimiter *limiter.RateLimiter
	sem         chan struct{}
	clientOnce  sync.Once
	client      *http.Client

	// sleep và now có thể thay thế trong test
	sleep func(time.Duration)
	now   func() time.Time
}

func NewCaller(logger log.Logger, config *cfg.Config) *Caller {
	maxConcurrent := config.GithubApi.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Caller{
		Logger:      logger,
		Config:      config,
		rateLimiter: limiter.NewRateLimiter(config.GithubApi.RequestsPerSecond),
		sem:         make(chan struct{}, maxConcurrent),
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// httpClient khởi tạo client dùng chung một cách lười biếng
func (c *Caller) httpClient() *http.Client {
	c.clientOnce.Do(func() {
		c.client = &http.Client{
			Timeout: 30 * time.Second,
		}
	})
	return c.client
}

// Close đóng các kết nối đang rảnh của client dùng chung.
// Nên được gọi bởi chủ sở hữu caller khi kết thúc
func (c *Caller) Close() {
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
}

// Call thực hiện một yêu cầu logic đến GitHub API.
// Giữ semaphore trong toàn bộ vòng retry, còn rate limiter được
// acquire lại cho từng lần thử
func (c *Caller) Call(ctx context.Context, endpoint string, method string, query url.Values) (*Response, error) {
	// Lớp thứ nhất: giới hạn số request đồng thời
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	fullUrl, err := c.buildUrl(endpoint, query)
	if err != nil {
		return nil, err
	}

	throttleDelay := time.Duration(c.Config.GithubApi.ThrottleDelay) * time.Millisecond
	attempt := 0
	for attempt < maxAttempts {
		// Lớp thứ hai: giới hạn số request mỗi giây
		if err := c.rateLimiter.Wait(ctx, throttleDelay); err != nil {
			return nil, err
		}

		resp, err := c.doRequest(ctx, method, fullUrl)
		if err != nil {
			c.Logger.Warn(ctx, "Lỗi khi gửi request tới GitHub API (%s %s, lần thử %d): %v", method, endpoint, attempt, err)
			c.backoff(attempt)
			attempt++
			continue
		}

		if resp.StatusCode < 400 {
			result, err := c.decodeResponse(resp)
			if err != nil {
				return nil, err
			}
			return result, nil
		}

		// Token không hợp lệ thì fail ngay, không retry
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			c.Logger.Error(ctx, "GitHub API trả về UNAUTHORIZED (401). Hãy kiểm tra access token")
			return nil, fmt.Errorf("%w: %s %s", ErrAuthFailed, method, endpoint)
		}

		// Hết quota thì chờ đến thời điểm reset rồi thử lại,
		// lần chờ này không tính vào số lần retry
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			waitFor := c.rateLimitResetWait(resp)
			drain(resp)
			c.Logger.Warn(ctx, "Rate limit hit! Chờ %v để tiếp tục", waitFor.Round(time.Second))
			c.sleep(waitFor)
			continue
		}

		c.Logger.Warn(ctx, "GitHub API trả về status không mong đợi: %s (lần thử %d)", resp.Status, attempt)
		drain(resp)
		c.backoff(attempt)
		attempt++
	}

	return nil, fmt.Errorf("%w: %s %s", ErrServiceUnavailable, method, endpoint)
}

func (c *Caller) buildUrl(endpoint string, query url.Values) (string, error) {
	base := strings.TrimRight(c.Config.GithubApi.ApiUrl, "/")
	endpoint = strings.TrimLeft(endpoint, "/")
	u, err := url.Parse(base + "/" + endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	if query != nil {
		merged := u.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Set(key, value)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

func (c *Caller) doRequest(ctx context.Context, method string, fullUrl string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, fullUrl, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.Config.GithubApi.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Config.GithubApi.AccessToken))
	}

	return c.httpClient().Do(req)
}

func (c *Caller) decodeResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{
		Data:  json.RawMessage(body),
		Links: parseLinkHeader(resp.Header.Get("Link")),
	}, nil
}

// backoff chờ 2^attempt giây trước lần thử tiếp theo (1, 2, 4, 8, 16)
func (c *Caller) backoff(attempt int) {
	c.sleep(time.Duration(1<<attempt) * time.Second)
}

// rateLimitResetWait tính thời gian chờ từ header X-RateLimit-Reset:
// max(0, reset - now) + 1 giây
func (c *Caller) rateLimitResetWait(resp *http.Response) time.Duration {
	resetTimeStr := resp.Header.Get("X-RateLimit-Reset")
	resetTimeInt, err := strconv.ParseInt(resetTimeStr, 10, 64)
	if err != nil {
		// Không parse được thời gian reset thì chỉ chờ khoảng đệm tối thiểu
		return time.Second
	}
	wait := time.Unix(resetTimeInt, 0).Sub(c.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Second
}

// parseLinkHeader tách header Link kiểu GitHub thành map rel -> URL.
// Ví dụ: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkHeader(header string) map[string]*url.URL {
	if header == "" {
		return nil
	}
	links := make(map[string]*url.URL)
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		for _, section := range sections[1:] {
			section = strings.TrimSpace(section)
			if rel, ok := strings.CutPrefix(section, `rel="`); ok {
				links[strings.TrimSuffix(rel, `"`)] = u
			}
		}
	}
	if len(links) == 0 {
		return nil
	}
	return links
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
