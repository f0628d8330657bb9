package limiter

import (
	"context"
	"sync"
	"time"
)

// Giới hạn số lượng request trong 1 giây
type RateLimiter struct {
	requestTimes []time.Time
	maxRequests  int
	mu           sync.Mutex
	now          func() time.Time
}

func NewRateLimiter(maxRequests int) *RateLimiter {
	return &RateLimiter{
		requestTimes: make([]time.Time, 0, maxRequests),
		maxRequests:  maxRequests,
		now:          time.Now,
	}
}

// NewRateLimiterWithClock dùng cho test, cho phép kiểm soát thời gian
func NewRateLimiterWithClock(maxRequests int, now func() time.Time) *RateLimiter {
	r := NewRateLimiter(maxRequests)
	r.now = now
	return r
}

// Allow kiểm tra xem có thể thực hiện request mới hay không
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	oneSecondAgo := now.Add(-1 * time.Second)

	// Xóa các request cũ hơn 1 giây
	validTimes := make([]time.Time, 0, len(r.requestTimes))
	for _, t := range r.requestTimes {
		if t.After(oneSecondAgo) {
			validTimes = append(validTimes, t)
		}
	}
	r.requestTimes = validTimes

	// Nếu số lượng request trong 1 giây vừa qua nhỏ hơn giới hạn thì add request mới và cho phép thực hiện
	if len(r.requestTimes) < r.maxRequests {
		r.requestTimes = append(r.requestTimes, now)
		return true
	}

	return false
}

// Wait chặn cho đến khi có thể thực hiện request mới.
// throttleDelay là khoảng thời gian chờ giữa các lần kiểm tra lại
func (r *RateLimiter) Wait(ctx context.Context, throttleDelay time.Duration) error {
	if throttleDelay <= 0 {
		throttleDelay = 10 * time.Millisecond
	}
	for !r.Allow() {
		timer := time.NewTimer(throttleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
