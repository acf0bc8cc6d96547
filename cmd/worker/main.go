package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/thebookish/proofsnap/internal/cache"
	"github.com/thebookish/proofsnap/internal/config"
	"github.com/thebookish/proofsnap/internal/database"
	"github.com/thebookish/proofsnap/internal/log"
	"github.com/thebookish/proofsnap/internal/queue"
	"github.com/thebookish/proofsnap/internal/repository"
	"github.com/thebookish/proofsnap/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()

	links := repository.NewShareLinkRepository(dbPool)
	processor := tasks.NewProcessor(links, logger)
	consumer := queue.NewConsumer(
		redisClient,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure consumer group failed")
	}

	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}
