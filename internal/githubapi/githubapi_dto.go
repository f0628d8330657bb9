// Gói githubapi cung cấp các đối tượng truyền dữ liệu cho dự án
// Chuyển đổi phản hồi api tìm kiếm github thành một cấu trúc

package githubapi

import "time"

type Owner struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type RepoItem struct {
	Id              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Owner           Owner  `json:"owner"`
	StargazersCount int64  `json:"stargazers_count"`
	ForksCount      int64  `json:"forks_count"`
	WatchersCount   int64  `json:"watchers_count"`
	Language        string `json:"language"`
	// Có thể thêm nhiều trường tại đây
}

// Mapping response của api search/repositories
type RawSearchResponse struct {
	TotalCount        int        `json:"total_count"`
	IncompleteResults bool       `json:"incomplete_results"`
	Items             []RepoItem `json:"items"`
}

// CommitUser là author gắn với tài khoản GitHub, có thể null trong response
type CommitUser struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type CommitAuthor struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

type CommitDetail struct {
	Message string       `json:"message"`
	Author  CommitAuthor `json:"author"`
}

// Mapping response của api repos/{owner}/{repo}/commits
type CommitResponse struct {
	SHA    string       `json:"sha"`
	Author *CommitUser  `json:"author"`
	Commit CommitDetail `json:"commit"`
}
