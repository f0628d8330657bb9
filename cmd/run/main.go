package main

import (
	"context"
	"flag"
	"os"

	"github.com/thep200/github-saver/api"
	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/pkg/log"
)

func main() {
	// Parse command line arguments, giá trị <= 0 sẽ dùng config
	limit := flag.Int("limit", 0, "Maximum number of fetched top GitHub repositories")
	batchSize := flag.Int("batch-size", 0, "Maximum number of repositories saved at once")
	pageSize := flag.Int("page-size", 0, "Maximum number of repositories fetched per listing page")
	maxConcurrent := flag.Int("max-concurrent-requests", 0, "Maximum number of concurrent requests to GitHub API")
	requestsPerSecond := flag.Int("requests-per-second", 0, "Maximum number of requests per second to GitHub API")
	flag.Parse()

	ctx := context.Background()
	logger, _ := log.NewCslLogger()

	saverApi := api.NewSaverAPI()
	err := saverApi.Initialize(ctx, func(c *cfg.Config) {
		if *maxConcurrent > 0 {
			c.GithubApi.MaxConcurrentRequests = *maxConcurrent
		}
		if *requestsPerSecond > 0 {
			c.GithubApi.RequestsPerSecond = *requestsPerSecond
		}
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize: %v", err)
		os.Exit(1)
	}
	defer saverApi.Close()

	logger.Info(ctx, "Starting GitHub top repositories saver")
	if err := saverApi.Run(ctx, *limit, *batchSize, *pageSize); err != nil {
		logger.Error(ctx, "Failed: %v", err)
		os.Exit(1)
	}

	stats, _ := saverApi.GetSaveStats()
	logger.Info(ctx, "Successfully saved %d repositories in %s", stats.ReposSaved, stats.Duration)
}
