package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/DeafMist/media-aggregator/internal/config"
	"github.com/DeafMist/media-aggregator/internal/elasticsearch"
	"github.com/DeafMist/media-aggregator/internal/logger"
)

const (
	maxConnectAttempts = 10
	maxRetryDelay      = 30 * time.Second
	runTimeout         = 2 * time.Minute
	// retentionField is stamped on every document by the index writer.
	retentionField = "indexed_date"
)

type pruner interface {
	Ping(ctx context.Context) error
	DeleteOlderThan(ctx context.Context, indices []string, field string, maxAge time.Duration, batchSize int) (int64, error)
}

func main() {
	_ = godotenv.Load()

	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(elasticsearch.Config{
		Addresses:     []string{cfg.ElasticsearchAddr},
		Username:      cfg.ElasticsearchUsername,
		Password:      cfg.ElasticsearchPassword,
		SkipTLSVerify: cfg.ElasticsearchSkipTLS,
	}, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := waitForCluster(ctx, log, esClient, 2*time.Second); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("failed to connect to elasticsearch after retries", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("connected to elasticsearch")

	scheduler, err := schedule(ctx, log, esClient, cfg)
	if err != nil {
		log.Error("schedule retention", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
		slog.Any("indices", cfg.Indices),
	)

	runOnce(ctx, log, esClient, cfg)
	scheduler.Start()

	<-ctx.Done()
	log.Info("shutdown signal received")
	<-scheduler.Stop().Done()
}

// schedule registers the pruning run on a cron that fires every cfg.Interval.
// Overlapping runs are skipped.
func schedule(ctx context.Context, log *slog.Logger, es pruner, cfg *config.Retention) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+cfg.Interval.String(), func() {
		runOnce(ctx, log, es, cfg)
	}); err != nil {
		return nil, fmt.Errorf("add retention job: %w", err)
	}
	return c, nil
}

// waitForCluster pings with exponential backoff until the cluster answers.
func waitForCluster(ctx context.Context, log *slog.Logger, es pruner, delay time.Duration) error {
	var err error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = es.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxConnectAttempts),
			slog.Duration("retry_in", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, maxRetryDelay)
	}
	return err
}

// runOnce prunes old documents; failures wait for the next tick.
func runOnce(ctx context.Context, log *slog.Logger, es pruner, cfg *config.Retention) int64 {
	subCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	deleted, err := es.DeleteOlderThan(subCtx, cfg.Indices, retentionField, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		return 0
	}

	if deleted > 0 {
		log.Info("retention run completed", slog.Int64("deleted", deleted))
	} else {
		log.Debug("retention run completed, no old documents found")
	}
	return deleted
}
