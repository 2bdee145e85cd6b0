// Package loader re-indexes everything persisted for a source.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/store"
)

// ErrNothingToIndex is returned when a source has no loadable records.
var ErrNothingToIndex = errors.New("nothing to index")

// RecordSource reads persisted records.
type RecordSource interface {
	LoadAll(source string, kind models.Kind) (store.LoadResult, error)
}

// BulkIndexer writes records to the search backend.
type BulkIndexer interface {
	BulkIndex(ctx context.Context, kind models.Kind, records []models.Record, source string) (indexing.Result, error)
}

// Loader bridges the content store and the index writer.
type Loader struct {
	store   RecordSource
	indexer BulkIndexer
	log     *slog.Logger
}

func New(st RecordSource, idx BulkIndexer, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{store: st, indexer: idx, log: logger}
}

// Run loads every stored record of source and submits them in one bulk call.
// The whole history of the source goes into a single request.
func (l *Loader) Run(ctx context.Context, source string, kind models.Kind) (indexing.Result, error) {
	loaded, err := l.store.LoadAll(source, kind)
	if err != nil {
		return indexing.Result{}, fmt.Errorf("load %s: %w", source, err)
	}
	if len(loaded.Skipped) > 0 {
		l.log.Warn("skipped unreadable records",
			slog.String("source", source),
			slog.Int("skipped", len(loaded.Skipped)),
		)
	}
	if len(loaded.Records) == 0 {
		return indexing.Result{}, fmt.Errorf("source %s: %w", source, ErrNothingToIndex)
	}

	l.log.Info("indexing stored records",
		slog.String("source", source),
		slog.String("kind", kind.String()),
		slog.Int("records", len(loaded.Records)),
	)
	return l.indexer.BulkIndex(ctx, kind, loaded.Records, source)
}
