package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/sources"
)

// delivery holds the flags shared by every fetch command.
type delivery struct {
	noIndex bool
	publish bool
}

func (d *delivery) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&d.noIndex, "no-index", false, "don't index results, just print them")
	cmd.Flags().BoolVar(&d.publish, "publish", false, "also publish the records to the Kafka ingest topic")
}

// credential prefers the explicit flag over the configured fallback.
func credential(flag, fallback string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return fallback
}

func (a *app) nytimesCommand() *cobra.Command {
	var (
		q      sources.NYTimesQuery
		apiKey string
		d      delivery
	)
	cmd := &cobra.Command{
		Use:   "nytimes",
		Short: "Fetch articles from the NY Times Article Search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := sources.NewNYTimesClient(credential(apiKey, a.cfg.NYTimesAPIKey), a.sourceOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Fetching articles from NY Times...")
			articles, err := client.Fetch(cmd.Context(), q)
			if err != nil {
				return err
			}
			return a.deliver(cmd, sources.SourceNYTimes, models.AsRecords(articles), d)
		},
	}
	cmd.Flags().StringVarP(&q.Query, "query", "q", "", "search query")
	cmd.Flags().StringVar(&q.BeginDate, "begin-date", "", "begin date (YYYYMMDD)")
	cmd.Flags().StringVar(&q.EndDate, "end-date", "", "end date (YYYYMMDD)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "NY Times API key (default $NYTIMES_API_KEY)")
	d.bind(cmd)
	return cmd
}

func (a *app) mediastackCommand() *cobra.Command {
	var (
		q      sources.MediastackQuery
		apiKey string
		d      delivery
	)
	cmd := &cobra.Command{
		Use:   "mediastack",
		Short: "Fetch articles from the Mediastack API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := sources.NewMediastackClient(credential(apiKey, a.cfg.MediastackAPIKey), a.sourceOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Fetching articles from Mediastack...")
			articles, err := client.Fetch(cmd.Context(), q)
			if err != nil {
				return err
			}
			return a.deliver(cmd, sources.SourceMediastack, models.AsRecords(articles), d)
		},
	}
	cmd.Flags().StringVarP(&q.Keywords, "keywords", "k", "", "keywords to search for")
	cmd.Flags().StringVar(&q.Countries, "countries", "", "comma-separated country codes, e.g. us,gb")
	cmd.Flags().StringVarP(&q.Categories, "categories", "c", "", "comma-separated categories, e.g. business,technology")
	cmd.Flags().StringVar(&q.DateFrom, "date-from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.DateTo, "date-to", "", "end date (YYYY-MM-DD), defaults to today")
	cmd.Flags().IntVar(&q.Limit, "limit", 100, "maximum number of articles")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Mediastack API key (default $MEDIASTACK_API_KEY)")
	d.bind(cmd)
	return cmd
}

func (a *app) gnewsCommand() *cobra.Command {
	var (
		q      sources.GNewsQuery
		apiKey string
		d      delivery
	)
	cmd := &cobra.Command{
		Use:   "gnews",
		Short: "Fetch articles from GNews (search with --query, top headlines otherwise)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := sources.NewGNewsClient(credential(apiKey, a.cfg.GNewsAPIKey), a.sourceOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Fetching articles from GNews...")
			articles, err := client.Fetch(cmd.Context(), q)
			if err != nil {
				return err
			}
			return a.deliver(cmd, sources.SourceGNews, models.AsRecords(articles), d)
		},
	}
	cmd.Flags().StringVarP(&q.Query, "query", "q", "", "search query")
	cmd.Flags().StringVar(&q.Category, "category", "", "top headlines topic, e.g. technology")
	cmd.Flags().StringVar(&q.Lang, "lang", "en", "language code")
	cmd.Flags().StringVar(&q.Country, "country", "us", "country code")
	cmd.Flags().IntVar(&q.Max, "max-results", 10, "maximum number of articles")
	cmd.Flags().StringVar(&q.From, "from-date", "", "oldest publication time (ISO 8601), search only")
	cmd.Flags().StringVar(&q.To, "to-date", "", "newest publication time (ISO 8601), search only")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "GNews API key (default $GNEWS_API_KEY)")
	d.bind(cmd)
	return cmd
}

func (a *app) tweetsCommand() *cobra.Command {
	var (
		q     sources.TweetQuery
		token string
		d     delivery
	)
	cmd := &cobra.Command{
		Use:   "tweets <username>",
		Short: "Fetch recent posts of an X/Twitter handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sources.NewTwitterClient(credential(token, a.cfg.TwitterBearerToken), a.sourceOptions()...)
			if err != nil {
				return err
			}
			q.Username = args[0]
			fmt.Fprintf(a.out, "Fetching tweets from @%s...\n", strings.TrimPrefix(q.Username, "@"))
			posts, err := client.Fetch(cmd.Context(), q)
			if err != nil {
				if errors.Is(err, sources.ErrUserNotFound) {
					return fmt.Errorf("user %q not found", q.Username)
				}
				return err
			}
			return a.deliver(cmd, sources.SourceTweets, models.AsRecords(posts), d)
		},
	}
	cmd.Flags().StringVar(&q.StartTime, "start-time", "", "start time (ISO 8601, e.g. 2024-01-01T00:00:00Z)")
	cmd.Flags().StringVar(&q.EndTime, "end-time", "", "end time (ISO 8601)")
	cmd.Flags().IntVar(&q.MaxResults, "max-results", 100, "maximum number of tweets (5-100)")
	cmd.Flags().StringVar(&token, "bearer-token", "", "X API bearer token (default $TWITTER_BEARER_TOKEN)")
	d.bind(cmd)
	return cmd
}

// deliver reports, indexes and optionally publishes freshly fetched records.
// They are already on disk at this point.
func (a *app) deliver(cmd *cobra.Command, source string, records []models.Record, d delivery) error {
	ctx := cmd.Context()
	fmt.Fprintf(a.out, "Found %d records (saved under %s)\n", len(records), a.store.Dir(source))

	if d.noIndex {
		printRecords(a.out, records)
	} else if len(records) > 0 {
		indexer, err := a.newIndexer()
		if err != nil {
			return err
		}
		kind := records[0].Kind()
		fmt.Fprintln(a.out, "Indexing into Elasticsearch...")
		res, err := indexer.BulkIndex(ctx, kind, records, source)
		if err != nil {
			return err
		}
		a.reportIndexed(res.Success, res.Failed, res.Index)
	}

	if d.publish && len(records) > 0 {
		pub, closeFn, err := a.newPublisher()
		if err != nil {
			return err
		}
		defer closeFn()
		if err := pub.Publish(ctx, source, records); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Published %d records to %s\n", len(records), a.cfg.KafkaTopic)
	}
	return nil
}

func (a *app) reportIndexed(success, failed int, index string) {
	fmt.Fprintf(a.out, "Indexed %d records into '%s'\n", success, index)
	if failed > 0 {
		fmt.Fprintf(a.errOut, "Failed to index %d records\n", failed)
	}
}
