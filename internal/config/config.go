package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every entry point.
type Common struct {
	ElasticsearchAddr     string
	ElasticsearchUsername string
	ElasticsearchPassword string
	ElasticsearchSkipTLS  bool
}

// CLI holds configuration for the mediaagg command-line tool.
type CLI struct {
	Common
	DataRoot           string
	IndexPrefix        string
	NYTimesAPIKey      string
	MediastackAPIKey   string
	GNewsAPIKey        string
	TwitterBearerToken string
	KafkaBrokers       []string
	KafkaTopic         string
	HTTPTimeout        time.Duration
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	IndexPrefix    string
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
	FlushInterval  time.Duration
	MetricsAddr    string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr       string
	DefaultPage    int
	MaxPage        int
	DefaultIndices []string
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Indices   []string
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadCLI builds a CLI config from environment variables.
func LoadCLI() (*CLI, error) {
	c := &CLI{
		Common:             loadCommon(),
		DataRoot:           getEnv("DATA_ROOT", "./data"),
		IndexPrefix:        getEnv("INDEX_PREFIX", "articles"),
		NYTimesAPIKey:      os.Getenv("NYTIMES_API_KEY"),
		MediastackAPIKey:   os.Getenv("MEDIASTACK_API_KEY"),
		GNewsAPIKey:        os.Getenv("GNEWS_API_KEY"),
		TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
		KafkaBrokers:       splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "media_records"),
		HTTPTimeout:        getDuration("HTTP_TIMEOUT", "30s"),
	}

	if strings.TrimSpace(c.IndexPrefix) == "" {
		return nil, fmt.Errorf("INDEX_PREFIX cannot be blank")
	}
	if c.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		IndexPrefix:    getEnv("INDEX_PREFIX", "articles"),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "media_records"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "media-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 100),
		FlushInterval:  getDuration("WORKER_FLUSH_INTERVAL", "5s"),
		MetricsAddr:    getEnv("WORKER_METRICS_ADDR", ":9102"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.FlushInterval <= 0 {
		return nil, fmt.Errorf("WORKER_FLUSH_INTERVAL must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:         loadCommon(),
		BindAddr:       getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage:    getInt("API_PAGE_SIZE", 20),
		MaxPage:        getInt("API_MAX_PAGE_SIZE", 100),
		DefaultIndices: splitAndTrim(getEnv("API_INDICES", "articles-*,tweets")),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if len(c.DefaultIndices) == 0 {
		return nil, fmt.Errorf("API_INDICES must name at least one index")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Indices:   splitAndTrim(getEnv("RETENTION_INDICES", "articles-*,tweets")),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}
	if len(c.Indices) == 0 {
		return nil, fmt.Errorf("RETENTION_INDICES must name at least one index")
	}

	return c, nil
}

// loadCommon resolves the Elasticsearch address: ELASTICSEARCH_ADDR wins,
// otherwise it is assembled from host, port and the TLS flag.
func loadCommon() Common {
	addr := getEnv("ELASTICSEARCH_ADDR", "")
	if addr == "" {
		scheme := "http"
		if getBool("ELASTICSEARCH_USE_TLS", false) {
			scheme = "https"
		}
		hostPort := net.JoinHostPort(
			getEnv("ELASTICSEARCH_HOST", "localhost"),
			strconv.Itoa(getInt("ELASTICSEARCH_PORT", 9200)),
		)
		addr = scheme + "://" + hostPort
	}

	return Common{
		ElasticsearchAddr:     addr,
		ElasticsearchUsername: getEnv("ELASTICSEARCH_USERNAME", "admin"),
		// admin/admin only suits a local development cluster
		ElasticsearchPassword: getEnv("ELASTICSEARCH_PASSWORD", "admin"),
		ElasticsearchSkipTLS:  getBool("ELASTICSEARCH_SKIP_VERIFY", false),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
