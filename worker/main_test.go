package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/dedupe"
	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/logger"
	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/stream"
	"github.com/DeafMist/media-aggregator/internal/telemetry"
)

type bulkCall struct {
	kind    models.Kind
	source  string
	records []models.Record
}

type stubIndexer struct {
	calls  []bulkCall
	err    error
	failed int
}

func (s *stubIndexer) BulkIndex(_ context.Context, kind models.Kind, records []models.Record, source string) (indexing.Result, error) {
	s.calls = append(s.calls, bulkCall{kind: kind, source: source, records: records})
	if s.err != nil {
		return indexing.Result{}, s.err
	}
	return indexing.Result{
		Success: len(records) - s.failed,
		Failed:  s.failed,
		Index:   "idx-" + source,
		Total:   len(records),
	}, nil
}

type stubCommitter struct {
	committed []kafka.Message
}

func (c *stubCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.committed = append(c.committed, msgs...)
	return nil
}

type stubDLQ struct {
	msgs []kafka.Message
}

func (d *stubDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.msgs = append(d.msgs, msgs...)
	return nil
}

type fixture struct {
	p       *pipeline
	idx     *stubIndexer
	commit  *stubCommitter
	dlq     *stubDLQ
	metrics *telemetry.Metrics
}

func newFixture(batchSize int) *fixture {
	f := &fixture{
		idx:     &stubIndexer{},
		commit:  &stubCommitter{},
		dlq:     &stubDLQ{},
		metrics: telemetry.NewWithRegistry(prometheus.NewRegistry()),
	}
	f.p = newPipeline(logger.Discard(), f.idx, dedupe.NewCache(100, time.Hour), f.dlq, f.commit, f.metrics, batchSize)
	return f
}

var offset int64

func message(t *testing.T, source string, rec models.Record) kafka.Message {
	t.Helper()
	env, err := stream.Wrap(source, rec)
	require.NoError(t, err)
	value, err := json.Marshal(env)
	require.NoError(t, err)
	offset++
	return kafka.Message{Topic: "media_records", Offset: offset, Value: value}
}

func TestPipelineFlushesFullBatch(t *testing.T) {
	f := newFixture(2)
	ctx := context.Background()

	require.NoError(t, f.p.handle(ctx, message(t, "nytimes", models.Article{URL: "https://a"})))
	assert.Empty(t, f.idx.calls)
	assert.Empty(t, f.commit.committed)

	require.NoError(t, f.p.handle(ctx, message(t, "nytimes", models.Article{URL: "https://b"})))
	require.Len(t, f.idx.calls, 1)
	assert.Equal(t, models.KindArticle, f.idx.calls[0].kind)
	assert.Equal(t, "nytimes", f.idx.calls[0].source)
	assert.Len(t, f.idx.calls[0].records, 2)
	assert.Len(t, f.commit.committed, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RecordsIndexed.WithLabelValues("idx-nytimes")))
}

func TestPipelineGroupsByKindAndSource(t *testing.T) {
	f := newFixture(10)
	ctx := context.Background()

	require.NoError(t, f.p.handle(ctx, message(t, "gnews", models.Article{URL: "https://a"})))
	require.NoError(t, f.p.handle(ctx, message(t, "tweets", models.SocialPost{ID: "1"})))
	require.NoError(t, f.p.handle(ctx, message(t, "gnews", models.Article{URL: "https://b"})))
	require.NoError(t, f.p.flush(ctx))

	require.Len(t, f.idx.calls, 2)
	assert.Equal(t, "gnews", f.idx.calls[0].source)
	assert.Len(t, f.idx.calls[0].records, 2)
	assert.Equal(t, models.KindSocialPost, f.idx.calls[1].kind)
	assert.Len(t, f.commit.committed, 3)
}

func TestPipelineSkipsRecentlyIndexedRecords(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()
	post := models.SocialPost{ID: "42", Text: "hello"}

	require.NoError(t, f.p.handle(ctx, message(t, "tweets", post)))
	require.NoError(t, f.p.handle(ctx, message(t, "tweets", post)))
	require.NoError(t, f.p.flush(ctx))

	assert.Len(t, f.idx.calls, 1)
	assert.Len(t, f.commit.committed, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsDuplicate.WithLabelValues("tweets")))
}

func TestPipelineSkipsRepeatsWithinOneBatch(t *testing.T) {
	f := newFixture(10)
	ctx := context.Background()
	rec := models.Article{Title: "same", PublishedDate: "2024"}

	require.NoError(t, f.p.handle(ctx, message(t, "mediastack", rec)))
	require.NoError(t, f.p.handle(ctx, message(t, "mediastack", rec)))
	require.NoError(t, f.p.flush(ctx))

	require.Len(t, f.idx.calls, 1)
	assert.Len(t, f.idx.calls[0].records, 1)
	assert.Len(t, f.commit.committed, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecordsDuplicate.WithLabelValues("mediastack")))
}

func TestPipelineRetriesRecordsWithRejectedItems(t *testing.T) {
	f := newFixture(1)
	f.idx.failed = 1
	ctx := context.Background()
	post := models.SocialPost{ID: "7"}

	require.NoError(t, f.p.handle(ctx, message(t, "tweets", post)))
	require.NoError(t, f.p.handle(ctx, message(t, "tweets", post)))

	assert.Len(t, f.idx.calls, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RecordsFailed.WithLabelValues("idx-tweets")))
}

func TestPipelineDeadLettersUndecodableMessages(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()

	bad := kafka.Message{Topic: "media_records", Offset: 99, Value: []byte(`{"kind":"post","source":"tweets","record":{"text":"no id"}}`)}
	require.NoError(t, f.p.handle(ctx, bad))
	require.NoError(t, f.p.flush(ctx))

	require.Len(t, f.dlq.msgs, 1)
	assert.Equal(t, bad.Value, f.dlq.msgs[0].Value)
	assert.Empty(t, f.idx.calls)
	require.Len(t, f.commit.committed, 1)
	assert.Equal(t, int64(99), f.commit.committed[0].Offset)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DeadLettered.WithLabelValues("decode")))
}

func TestPipelineDeadLettersBatchOnIndexError(t *testing.T) {
	f := newFixture(2)
	f.idx.err = errors.New("cluster unavailable")
	ctx := context.Background()

	require.NoError(t, f.p.handle(ctx, message(t, "mediastack", models.Article{URL: "https://a"})))
	require.NoError(t, f.p.handle(ctx, message(t, "mediastack", models.Article{URL: "https://b"})))

	assert.Len(t, f.dlq.msgs, 2)
	assert.Len(t, f.commit.committed, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DeadLettered.WithLabelValues("index")))
}

type scriptedFetcher struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (s *scriptedFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(s.msgs) > 0 {
		msg := s.msgs[0]
		s.msgs = s.msgs[1:]
		return msg, nil
	}
	s.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func TestConsumeFlushesOnShutdown(t *testing.T) {
	f := newFixture(100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &scriptedFetcher{
		msgs: []kafka.Message{
			message(t, "nytimes", models.Article{URL: "https://a"}),
			message(t, "nytimes", models.Article{URL: "https://b"}),
		},
		cancel: cancel,
	}

	require.NoError(t, consume(ctx, logger.Discard(), r, f.p, time.Minute))
	require.Len(t, f.idx.calls, 1)
	assert.Len(t, f.idx.calls[0].records, 2)
	assert.Len(t, f.commit.committed, 2)
}
