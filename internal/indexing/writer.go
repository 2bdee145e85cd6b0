// Package indexing loads records into per-source search indices with
// deterministic document ids.
package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/media-aggregator/internal/elasticsearch"
	"github.com/DeafMist/media-aggregator/internal/models"
)

const (
	// DefaultPrefix prefixes article index names.
	DefaultPrefix = "articles"
	// PostIndex is the fixed index for social posts; it never takes a prefix.
	PostIndex = "tweets"

	maxLoggedFailures = 5
)

// ErrMixedKinds is returned when a batch holds records of another kind.
var ErrMixedKinds = errors.New("batch mixes record kinds")

// Backend is the subset of the Elasticsearch client the writer needs.
type Backend interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	Bulk(ctx context.Context, body io.Reader, opaqueID string) (*elasticsearch.BulkResponse, error)
}

// Result summarises one bulk call.
type Result struct {
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Index   string `json:"index"`
	Total   int    `json:"total"`
}

// Writer submits records to the search backend.
type Writer struct {
	es     Backend
	prefix string
	log    *slog.Logger
	now    func() time.Time
}

// NewWriter builds a writer. An empty prefix falls back to DefaultPrefix.
func NewWriter(es Backend, prefix string, logger *slog.Logger) *Writer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{es: es, prefix: prefix, log: logger, now: time.Now}
}

// IndexNameFor composes "<prefix>-<source>" with the source lower-cased and
// spaces replaced by hyphens.
func IndexNameFor(prefix, source string) string {
	return prefix + "-" + strings.ReplaceAll(strings.ToLower(source), " ", "-")
}

// IndexName is the index records of kind from source are written to.
func (w *Writer) IndexName(kind models.Kind, source string) string {
	if kind == models.KindSocialPost {
		return PostIndex
	}
	return IndexNameFor(w.prefix, source)
}

// EnsureIndex creates index with the mapping for kind unless it already exists.
func (w *Writer) EnsureIndex(ctx context.Context, index string, kind models.Kind) error {
	exists, err := w.es.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return w.es.CreateIndex(ctx, index, MappingFor(kind))
}

// BulkIndex upserts records of kind from source in a single bulk request.
// Records with a document id replace any earlier copy; the others get a
// backend-assigned id. Rejected items are counted, not returned as errors.
func (w *Writer) BulkIndex(ctx context.Context, kind models.Kind, records []models.Record, source string) (Result, error) {
	index := w.IndexName(kind, source)
	result := Result{Index: index}
	if len(records) == 0 {
		return result, nil
	}

	body, err := w.buildBody(index, kind, records)
	if err != nil {
		return result, err
	}

	if err := w.EnsureIndex(ctx, index, kind); err != nil {
		return result, fmt.Errorf("ensure index %s: %w", index, err)
	}

	opaqueID := uuid.NewString()
	w.log.Debug("submitting bulk request",
		slog.String("index", index),
		slog.Int("documents", len(records)),
		slog.String("opaque_id", opaqueID),
	)

	res, err := w.es.Bulk(ctx, body, opaqueID)
	if err != nil {
		return result, fmt.Errorf("bulk index into %s: %w", index, err)
	}

	result.Total = len(records)
	logged := 0
	items := res.Results()
	for _, item := range items {
		if item.OK() {
			result.Success++
			continue
		}
		result.Failed++
		if logged < maxLoggedFailures {
			logged++
			attrs := []any{slog.String("index", index), slog.String("id", item.ID), slog.Int("status", item.Status)}
			if item.Error != nil {
				attrs = append(attrs, slog.String("type", item.Error.Type), slog.String("reason", item.Error.Reason))
			}
			w.log.Warn("document rejected", attrs...)
		}
	}
	if missing := len(records) - len(items); missing > 0 {
		result.Failed += missing
	}

	w.log.Info("bulk index finished",
		slog.String("index", index),
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
		slog.String("opaque_id", opaqueID),
	)
	return result, nil
}

func (w *Writer) buildBody(index string, kind models.Kind, records []models.Record) (*bytes.Buffer, error) {
	indexedAt := w.now()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if rec.Kind() != kind {
			return nil, fmt.Errorf("record %d is a %s, want %s: %w", i, rec.Kind(), kind, ErrMixedKinds)
		}

		action := map[string]any{"_index": index}
		if id := rec.DocumentID(); id != "" {
			action["_id"] = id
		}
		if err := enc.Encode(map[string]any{"index": action}); err != nil {
			return nil, fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(rec.Document(indexedAt)); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}

	return &buf, nil
}
