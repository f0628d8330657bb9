package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thep200/github-saver/cfg"
	"github.com/thep200/github-saver/internal/model"
	"github.com/thep200/github-saver/pkg/db"
	"github.com/thep200/github-saver/pkg/kafka"
	"github.com/thep200/github-saver/pkg/log"
)

func main() {
	// Parse command line arguments
	consumerType := flag.String("type", "", "Type of consumer to run (repo, position, author_commit)")
	flag.Parse()

	if *consumerType == "" {
		fmt.Println("Please specify a consumer type: -type=[repo|position|author_commit]")
		os.Exit(1)
	}

	// Load configuration
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, _ := log.NewCslLogger()

	// Setup database
	mysql, _ := db.NewMysql(config)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create models
	repoModel, _ := model.NewRepo(config, logger, mysql)
	positionModel, _ := model.NewPosition(config, logger, mysql)
	authorCommitModel, _ := model.NewAuthorCommit(config, logger, mysql)

	// Consumer là bên ghi database ở chế độ Kafka nên migrate tại đây
	if err := mysql.Migrate(repoModel, positionModel, authorCommitModel); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the appropriate consumer based on type
	switch *consumerType {
	case "repo":
		startRepoConsumer(ctx, config, logger, repoModel)
	case "position":
		startPositionConsumer(ctx, config, logger, positionModel)
	case "author_commit":
		startAuthorCommitConsumer(ctx, config, logger, authorCommitModel)
	default:
		logger.Error(ctx, "Unknown consumer type: %s", *consumerType)
		os.Exit(1)
	}

	// Wait for termination signal
	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

// Mỗi message trên topic là một batch trọn vẹn từ saver nên handler
// chỉ cần unmarshal và ghi thẳng bằng CreateBatch

func startRepoConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, repoModel *model.Repo) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicRepo, "repo-consumer-group")

	consumer.RegisterHandler("repo", func(data []byte) error {
		var batch []model.RepoMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("failed to unmarshal repo batch: %w", err)
		}
		logger.Info(ctx, "Processing batch of %d repositories", len(batch))
		if err := repoModel.CreateBatch(batch); err != nil {
			return fmt.Errorf("failed to save repo batch: %w", err)
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Repo consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Repository consumer started successfully")
}

func startPositionConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, positionModel *model.Position) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicPosition, "position-consumer-group")

	consumer.RegisterHandler("position", func(data []byte) error {
		var batch []model.PositionMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("failed to unmarshal position batch: %w", err)
		}
		logger.Info(ctx, "Processing batch of %d positions", len(batch))
		if err := positionModel.CreateBatch(batch); err != nil {
			return fmt.Errorf("failed to save position batch: %w", err)
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Position consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Position consumer started successfully")
}

func startAuthorCommitConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, authorCommitModel *model.AuthorCommit) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicAuthorCommit, "author-commit-consumer-group")

	consumer.RegisterHandler("author_commit", func(data []byte) error {
		var batch []model.AuthorCommitMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("failed to unmarshal author commit batch: %w", err)
		}
		logger.Info(ctx, "Processing batch of %d author commits", len(batch))
		if err := authorCommitModel.CreateBatch(batch); err != nil {
			return fmt.Errorf("failed to save author commit batch: %w", err)
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Author commit consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Author commit consumer started successfully")
}
