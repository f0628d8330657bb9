package crawler

import (
	"context"
	"sync"
)

// Execute chạy fn trên danh sách args với số worker cố định
// min(maxWorkers, len(args)). Các worker cùng lấy việc từ một queue chung
// nên thứ tự kết quả KHÔNG được đảm bảo: caller cần tự mang khóa đối chiếu
// trong args nếu cần gắn kết quả với đầu vào.
// Mỗi phần tử đầu vào sinh ra đúng một kết quả. Lỗi đầu tiên sẽ hủy
// các việc còn lại và được trả về
func Execute[A any, R any](ctx context.Context, fn func(context.Context, A) (R, error), args []A, maxWorkers int) ([]R, error) {
	if len(args) == 0 {
		return []R{}, nil
	}

	workers := maxWorkers
	if len(args) < workers {
		workers = len(args)
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan A, len(args))
	for _, arg := range args {
		jobs <- arg
	}
	close(jobs)

	results := make(chan R, len(args))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for arg := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				result, err := fn(ctx, arg)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results <- result
			}
		}()
	}
	wg.Wait()
	close(results)

	if firstErr != nil {
		return nil, firstErr
	}

	collected := make([]R, 0, len(args))
	for result := range results {
		collected = append(collected, result)
	}

	// Ctx bên ngoài bị hủy khi queue chưa cạn thì worker thoát sớm,
	// không được trả về tập kết quả thiếu như thể thành công
	if len(collected) < len(args) {
		return nil, ctx.Err()
	}
	return collected, nil
}
