package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Config describes how to reach the cluster.
type Config struct {
	Addresses     []string
	Username      string
	Password      string
	SkipTLSVerify bool
	// Transport replaces the default HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// Client wraps go-elasticsearch with helpers tailored to this project.
type Client struct {
	es  *elasticsearch.Client
	log *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	}
	if esCfg.Transport == nil && cfg.SkipTLSVerify {
		esCfg.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // self-signed dev clusters
		}
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health reports cluster health reachability.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// IndexExists reports whether index is present.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", index, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check index %s failed: %s", index, res.Status())
	}
}

// Refresh makes recent writes to indices visible to search.
func (c *Client) Refresh(ctx context.Context, indices ...string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(indices...),
	)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("refresh failed: %s", res.Status())
	}
	return nil
}

// CreateIndex creates index with the given settings and mappings. Losing a
// creation race to another process is not an error.
func (c *Client) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal index body: %w", err)
	}

	res, err := c.es.Indices.Create(
		index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		if res.StatusCode == http.StatusBadRequest && bytes.Contains(data, []byte("resource_already_exists_exception")) {
			c.log.Debug("index already exists", slog.String("index", index))
			return nil
		}
		return fmt.Errorf("create index %s failed: %s", index, strings.TrimSpace(string(data)))
	}

	c.log.Info("created index", slog.String("index", index))
	return nil
}

// BulkItemError is the error object of a rejected bulk item.
type BulkItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkItem is the per-document outcome of a bulk request.
type BulkItem struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Status int            `json:"status"`
	Error  *BulkItemError `json:"error,omitempty"`
}

// OK reports whether the backend accepted the item.
func (i BulkItem) OK() bool {
	return i.Status >= 200 && i.Status < 300 && i.Error == nil
}

// BulkResponse is the decoded body of a _bulk call.
type BulkResponse struct {
	Took   int64                 `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]BulkItem `json:"items"`
}

// Results flattens the action-keyed items into one slice in request order.
func (r *BulkResponse) Results() []BulkItem {
	out := make([]BulkItem, 0, len(r.Items))
	for _, item := range r.Items {
		for _, result := range item {
			out = append(out, result)
		}
	}
	return out
}

// Bulk submits an NDJSON body to the _bulk endpoint. opaqueID, when set, is sent
// as X-Opaque-Id so the request can be found in the cluster's logs.
func (c *Client) Bulk(ctx context.Context, body io.Reader, opaqueID string) (*BulkResponse, error) {
	opts := []func(*esapi.BulkRequest){c.es.Bulk.WithContext(ctx)}
	if opaqueID != "" {
		opts = append(opts, c.es.Bulk.WithOpaqueID(opaqueID))
	}

	res, err := c.es.Bulk(body, opts...)
	if err != nil {
		return nil, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("bulk request failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	return &parsed, nil
}

// DeleteOlderThan removes documents whose field is older than maxAge using
// batched delete-by-query. It loops until a batch deletes fewer than batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, indices []string, field string, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					field: map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			indices,
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
			c.es.DeleteByQuery.WithAllowNoIndices(true),
			c.es.DeleteByQuery.WithIgnoreUnavailable(true),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}
