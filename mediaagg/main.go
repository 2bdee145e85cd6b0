// Command mediaagg fetches articles and posts, keeps them on disk and loads
// them into the search index.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DeafMist/media-aggregator/internal/config"
	"github.com/DeafMist/media-aggregator/internal/elasticsearch"
	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/logger"
	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/scrape"
	"github.com/DeafMist/media-aggregator/internal/sources"
	"github.com/DeafMist/media-aggregator/internal/store"
	"github.com/DeafMist/media-aggregator/internal/stream"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type recordIndexer interface {
	BulkIndex(ctx context.Context, kind models.Kind, records []models.Record, source string) (indexing.Result, error)
}

type recordPublisher interface {
	Publish(ctx context.Context, source string, records []models.Record) error
}

// app carries the configuration and collaborators of one invocation. The
// constructors are fields so tests can swap the network-facing parts.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfg   *config.CLI
	log   *slog.Logger
	store *store.Store

	dataRoot string

	sourceOptions func() []sources.Option
	newIndexer    func() (recordIndexer, error)
	newPublisher  func() (recordPublisher, func() error, error)
	newScraper    func(screenshot bool, lang string) *scrape.Scraper
}

func newApp(out, errOut io.Writer) *app {
	a := &app{out: out, errOut: errOut}
	a.sourceOptions = a.defaultSourceOptions
	a.newIndexer = a.defaultIndexer
	a.newPublisher = a.defaultPublisher
	a.newScraper = a.defaultScraper
	return a
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mediaagg",
		Short:         "Fetch, store and index news articles and social posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.dataRoot, "data-root", "", "directory records are saved under (default $DATA_ROOT or ./data)")

	root.AddCommand(
		a.nytimesCommand(),
		a.mediastackCommand(),
		a.gnewsCommand(),
		a.tweetsCommand(),
		a.indexCommand(),
		a.scrapeCommand(),
		a.sourcesCommand(),
	)
	return root
}

// setup resolves configuration once per invocation.
func (a *app) setup() error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return err
	}
	if a.dataRoot != "" {
		cfg.DataRoot = a.dataRoot
	}
	a.cfg = cfg
	a.log = logger.NewWithWriter("mediaagg", a.errOut)
	a.store = store.New(cfg.DataRoot, a.log)
	return nil
}

func (a *app) defaultSourceOptions() []sources.Option {
	return []sources.Option{
		sources.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		sources.WithSaver(a.store),
	}
}

func (a *app) defaultIndexer() (recordIndexer, error) {
	es, err := elasticsearch.New(elasticsearch.Config{
		Addresses:     []string{a.cfg.ElasticsearchAddr},
		Username:      a.cfg.ElasticsearchUsername,
		Password:      a.cfg.ElasticsearchPassword,
		SkipTLSVerify: a.cfg.ElasticsearchSkipTLS,
	}, a.log)
	if err != nil {
		return nil, err
	}
	return indexing.NewWriter(es, a.cfg.IndexPrefix, a.log), nil
}

func (a *app) defaultPublisher() (recordPublisher, func() error, error) {
	if len(a.cfg.KafkaBrokers) == 0 {
		return nil, nil, fmt.Errorf("--publish needs KAFKA_BROKERS")
	}
	w := stream.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
	return stream.NewPublisher(w, a.log), w.Close, nil
}

func (a *app) defaultScraper(screenshot bool, lang string) *scrape.Scraper {
	if !screenshot {
		return scrape.New(a.store, nil, nil, a.log)
	}
	return scrape.New(a.store, scrape.ChromeRenderer{}, scrape.Tesseract{Lang: lang}, a.log)
}
