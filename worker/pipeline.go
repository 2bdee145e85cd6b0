package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/media-aggregator/internal/dedupe"
	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/stream"
	"github.com/DeafMist/media-aggregator/internal/telemetry"
)

type bulkIndexer interface {
	BulkIndex(ctx context.Context, kind models.Kind, records []models.Record, source string) (indexing.Result, error)
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type batchKey struct {
	kind   models.Kind
	source string
}

type batch struct {
	records []models.Record
	keys    []string
	msgs    []kafka.Message
	// queued holds the keys already buffered in this batch.
	queued map[string]struct{}
}

// pipeline groups consumed records per (kind, source) and submits each group
// as one bulk request. Offsets are committed only after every pending group
// was indexed or dead-lettered.
type pipeline struct {
	log       *slog.Logger
	idx       bulkIndexer
	cache     *dedupe.Cache
	dlq       stream.MessageWriter
	reader    committer
	metrics   *telemetry.Metrics
	batchSize int

	pending     map[batchKey]*batch
	order       []batchKey
	uncommitted []kafka.Message
}

func newPipeline(log *slog.Logger, idx bulkIndexer, cache *dedupe.Cache, dlq stream.MessageWriter, reader committer, metrics *telemetry.Metrics, batchSize int) *pipeline {
	return &pipeline{
		log:       log,
		idx:       idx,
		cache:     cache,
		dlq:       dlq,
		reader:    reader,
		metrics:   metrics,
		batchSize: batchSize,
		pending:   make(map[batchKey]*batch),
	}
}

// handle buffers one message and flushes when its group is full. A returned
// error means offsets could not be settled and the worker must stop.
func (p *pipeline) handle(ctx context.Context, msg kafka.Message) error {
	p.uncommitted = append(p.uncommitted, msg)

	source, rec, err := stream.Unwrap(msg.Value)
	if err != nil {
		p.log.Warn("invalid message, sending to DLQ",
			slog.Any("err", err),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		return p.deadLetter(ctx, "decode", err, msg)
	}

	key, err := dedupe.Key(source, rec)
	if err != nil {
		return p.deadLetter(ctx, "decode", err, msg)
	}
	bk := batchKey{kind: rec.Kind(), source: source}
	b := p.pending[bk]
	if p.isDuplicate(b, key) {
		p.log.Debug("duplicate record", slog.String("key", key))
		p.metrics.RecordsDuplicate.WithLabelValues(source).Inc()
		return nil
	}
	if b == nil {
		b = &batch{queued: make(map[string]struct{})}
		p.pending[bk] = b
		p.order = append(p.order, bk)
	}
	b.queued[key] = struct{}{}
	b.records = append(b.records, rec)
	b.keys = append(b.keys, key)
	b.msgs = append(b.msgs, msg)

	if len(b.records) >= p.batchSize {
		return p.flush(ctx)
	}
	return nil
}

// isDuplicate reports whether key was indexed recently or is already buffered
// in b.
func (p *pipeline) isDuplicate(b *batch, key string) bool {
	if b != nil {
		if _, ok := b.queued[key]; ok {
			return true
		}
	}
	return p.cache.IsSeen(key)
}

// flush submits every pending group and commits the consumed offsets.
func (p *pipeline) flush(ctx context.Context) error {
	for _, bk := range p.order {
		b := p.pending[bk]
		start := time.Now()

		res, err := p.idx.BulkIndex(ctx, bk.kind, b.records, bk.source)
		if err != nil {
			p.log.Error("bulk index failed, sending batch to DLQ",
				slog.Any("err", err),
				slog.String("source", bk.source),
				slog.Int("records", len(b.records)),
			)
			if dlqErr := p.deadLetter(ctx, "index", err, b.msgs...); dlqErr != nil {
				return dlqErr
			}
			continue
		}

		p.metrics.ObserveBulk(res.Index, res.Success, res.Failed, time.Since(start))
		if res.Failed == 0 {
			p.cache.MarkSeen(b.keys...)
		}
		p.log.Info("indexed batch",
			slog.String("index", res.Index),
			slog.Int("success", res.Success),
			slog.Int("failed", res.Failed),
		)
	}

	p.pending = make(map[batchKey]*batch)
	p.order = p.order[:0]

	if len(p.uncommitted) == 0 {
		return nil
	}
	if err := p.reader.CommitMessages(ctx, p.uncommitted...); err != nil {
		return fmt.Errorf("commit %d messages: %w", len(p.uncommitted), err)
	}
	p.uncommitted = p.uncommitted[:0]
	return nil
}

func (p *pipeline) deadLetter(ctx context.Context, reason string, cause error, msgs ...kafka.Message) error {
	var errs []error
	for _, msg := range msgs {
		if err := stream.DeadLetter(ctx, p.log, p.dlq, msg, cause); err != nil {
			errs = append(errs, err)
			continue
		}
		p.metrics.DeadLettered.WithLabelValues(reason).Inc()
	}
	if len(errs) > 0 {
		return fmt.Errorf("dead letter: %w", errors.Join(errs...))
	}
	return nil
}
