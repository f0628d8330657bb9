// Package api cung cấp facade public để chạy pipeline crawl + save
package api

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/internal/crawler"
	"github.com/thep200/github-saver/internal/saver"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/log"
)

// SaveStats chứa thống kê về lần chạy pipeline
type SaveStats struct {
	IsRunning  bool      `json:"isRunning"`
	StartTime  time.Time `json:"startTime"`
	Duration   string    `json:"duration"`
	ReposSaved int       `json:"reposSaved"`
	LastError  string    `json:"lastError"`
}

// SaverAPI cung cấp các API để chạy GitHub saver
type SaverAPI struct {
	config  *cfg.Config
	logger  log.Logger
	mysql   *db.Mysql
	crawler *crawler.Crawler
	saver   *saver.Saver

	running bool
	statsMu sync.RWMutex
	stats   *SaveStats
}

// NewSaverAPI tạo một instance mới của SaverAPI
func NewSaverAPI() *SaverAPI {
	return &SaverAPI{
		stats: &SaveStats{},
	}
}

// Initialize khởi tạo các thành phần cần thiết cho pipeline.
// overrides được áp lên config trước khi các thành phần được tạo,
// vì semaphore của caller lấy kích thước từ config tại thời điểm khởi tạo
func (a *SaverAPI) Initialize(ctx context.Context, overrides ...func(*cfg.Config)) error {
	var err error

	// Load configuration
	loader, _ := cfg.NewViperLoader()
	a.config, err = loader.Load()
	if err != nil {
		logger, _ := log.NewCslLogger()
		logger.Error(ctx, "Failed to load configuration: %v", err)
		return err
	}
	for _, override := range overrides {
		override(a.config)
	}

	// Set up logger
	a.logger, err = log.NewCslLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Set up database
	a.mysql, err = db.NewMysql(a.config)
	if err != nil {
		a.logger.Error(ctx, "Failed to connect to database: %v", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set up crawler and saver
	a.crawler, err = crawler.NewCrawler(a.logger, a.config)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	a.saver, err = saver.NewSaver(a.logger, a.config, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create saver: %w", err)
	}

	// Migrate và đánh dấu saver sẵn sàng
	return a.saver.Init(ctx)
}

// Run chạy đồng bộ một lượt crawl + save với các tham số được chỉ định.
// Tham số <= 0 sẽ lấy giá trị từ config
func (a *SaverAPI) Run(ctx context.Context, limit int, batchSize int, pageSize int) error {
	if a.saver == nil || a.crawler == nil {
		return errors.New("saver api is not initialized")
	}

	a.statsMu.Lock()
	if a.running {
		a.statsMu.Unlock()
		return errors.New("a save run is already in progress")
	}
	a.running = true
	a.stats = &SaveStats{
		IsRunning: true,
		StartTime: time.Now(),
	}
	a.statsMu.Unlock()

	if limit <= 0 {
		limit = a.config.Saver.Limit
	}
	if batchSize <= 0 {
		batchSize = a.config.Saver.BatchSize
	}
	if pageSize <= 0 {
		pageSize = a.config.Saver.PageSize
	}

	seq := a.counting(a.crawler.Iterate(ctx, limit, pageSize))
	err := a.saver.SaveTopRepos(ctx, seq, batchSize)

	a.statsMu.Lock()
	a.stats.IsRunning = false
	a.stats.Duration = time.Since(a.stats.StartTime).String()
	if err != nil {
		a.stats.LastError = err.Error()
	}
	a.running = false
	a.statsMu.Unlock()

	return err
}

// counting đếm số repository đã được sinh ra để phục vụ thống kê
func (a *SaverAPI) counting(seq iter.Seq2[*crawler.Repository, error]) iter.Seq2[*crawler.Repository, error] {
	return func(yield func(*crawler.Repository, error) bool) {
		for repo, err := range seq {
			if err == nil {
				a.statsMu.Lock()
				a.stats.ReposSaved++
				a.statsMu.Unlock()
			}
			if !yield(repo, err) {
				return
			}
		}
	}
}

// GetSaveStats trả về thống kê của lần chạy gần nhất
func (a *SaverAPI) GetSaveStats() (*SaveStats, error) {
	a.statsMu.RLock()
	defer a.statsMu.RUnlock()

	if a.stats == nil {
		return &SaveStats{}, nil
	}

	stats := *a.stats
	if stats.IsRunning {
		stats.Duration = time.Since(stats.StartTime).String()
	}
	return &stats, nil
}

// GetDatabaseStatus kiểm tra trạng thái kết nối cơ sở dữ liệu
func (a *SaverAPI) GetDatabaseStatus() (string, error) {
	if a.mysql == nil {
		return "Database not initialized", nil
	}
	if err := a.mysql.Ping(); err != nil {
		return "Database not connected: " + err.Error(), err
	}
	return "Database connected", nil
}

// Close giải phóng các tài nguyên dùng chung (HTTP client, producer, DB)
func (a *SaverAPI) Close() {
	if a.crawler != nil {
		a.crawler.Close()
	}
	if a.saver != nil {
		a.saver.Close()
	}
	if a.mysql != nil {
		a.mysql.Close()
	}
}
