package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/media-aggregator/internal/config"
	"github.com/DeafMist/media-aggregator/internal/dedupe"
	"github.com/DeafMist/media-aggregator/internal/elasticsearch"
	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/logger"
	"github.com/DeafMist/media-aggregator/internal/stream"
	"github.com/DeafMist/media-aggregator/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	log := logger.New("worker")
	if err := run(log); err != nil {
		log.Error("worker stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.LoadWorker()
	if err != nil {
		return err
	}

	esClient, err := elasticsearch.New(elasticsearch.Config{
		Addresses:     []string{cfg.ElasticsearchAddr},
		Username:      cfg.ElasticsearchUsername,
		Password:      cfg.ElasticsearchPassword,
		SkipTLSVerify: cfg.ElasticsearchSkipTLS,
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics := telemetry.New()
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsRouter(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", slog.Any("err", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + stream.DeadLetterSuffix
	dlqWriter := stream.NewWriter(cfg.KafkaBrokers, dlqTopic)
	defer dlqWriter.Close()

	p := newPipeline(
		log,
		indexing.NewWriter(esClient, cfg.IndexPrefix, log),
		dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL),
		dlqWriter,
		reader,
		metrics,
		cfg.BatchSize,
	)

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.Int("batch_size", cfg.BatchSize),
	)

	return consume(ctx, log, reader, p, cfg.FlushInterval)
}

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

// consume feeds the pipeline until ctx is done. A fetch that idles for a
// whole flush interval flushes whatever is buffered.
func consume(ctx context.Context, log *slog.Logger, r fetcher, p *pipeline, interval time.Duration) error {
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, interval)
		msg, err := r.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("context canceled, flushing and stopping")
				flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return p.flush(flushCtx)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if err := p.flush(ctx); err != nil {
					return err
				}
				continue
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := p.handle(ctx, msg); err != nil {
			return err
		}
	}
}

func metricsRouter(m *telemetry.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}
