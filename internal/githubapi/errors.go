package githubapi

import "errors"

var (
	// ErrAuthFailed báo token không hợp lệ, không retry
	ErrAuthFailed = errors.New("github api rejected the access token")

	// ErrServiceUnavailable báo đã hết số lần retry mà vẫn không nhận được phản hồi
	ErrServiceUnavailable = errors.New("github api is not available after 5 retries")
)
