package indexing_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/elasticsearch"
	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/logger"
	"github.com/DeafMist/media-aggregator/internal/models"
)

type stubBackend struct {
	existing  map[string]bool
	created   []string
	bulkCalls int
	lines     []map[string]any
	opaqueIDs []string
	reply     func(n int) *elasticsearch.BulkResponse
	bulkErr   error
}

func (s *stubBackend) IndexExists(_ context.Context, index string) (bool, error) {
	return s.existing[index], nil
}

func (s *stubBackend) CreateIndex(_ context.Context, index string, _ map[string]any) error {
	s.created = append(s.created, index)
	if s.existing == nil {
		s.existing = map[string]bool{}
	}
	s.existing[index] = true
	return nil
}

func (s *stubBackend) Bulk(_ context.Context, body io.Reader, opaqueID string) (*elasticsearch.BulkResponse, error) {
	s.bulkCalls++
	s.opaqueIDs = append(s.opaqueIDs, opaqueID)
	if s.bulkErr != nil {
		return nil, s.bulkErr
	}
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, err
		}
		s.lines = append(s.lines, line)
	}
	n := len(s.lines) / 2
	if s.reply != nil {
		return s.reply(n), nil
	}
	return allCreated(n), nil
}

func allCreated(n int) *elasticsearch.BulkResponse {
	res := &elasticsearch.BulkResponse{}
	for i := 0; i < n; i++ {
		res.Items = append(res.Items, map[string]elasticsearch.BulkItem{"index": {Status: 201}})
	}
	return res
}

func TestIndexNameFor(t *testing.T) {
	require.Equal(t, "articles-ny-times", indexing.IndexNameFor("articles", "NY Times"))
	require.Equal(t, "articles-gnews", indexing.IndexNameFor("articles", "gnews"))
}

func TestPostsAlwaysUseFixedIndex(t *testing.T) {
	w := indexing.NewWriter(&stubBackend{}, "custom", logger.Discard())
	require.Equal(t, "tweets", w.IndexName(models.KindSocialPost, "elonmusk"))
	require.Equal(t, "custom-mediastack", w.IndexName(models.KindArticle, "mediastack"))
}

func TestBulkIndexEmptyInputSkipsBackend(t *testing.T) {
	backend := &stubBackend{}
	w := indexing.NewWriter(backend, "", logger.Discard())

	res, err := w.BulkIndex(context.Background(), models.KindArticle, nil, "nytimes")
	require.NoError(t, err)
	require.Equal(t, indexing.Result{Index: "articles-nytimes"}, res)
	require.Zero(t, backend.bulkCalls)
	require.Empty(t, backend.created)
}

func TestBulkIndexArticles(t *testing.T) {
	backend := &stubBackend{}
	w := indexing.NewWriter(backend, "articles", logger.Discard())
	w.SetClock(func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) })

	records := []models.Record{
		models.Article{Title: "With URL", URL: "https://example.com/a"},
		models.Article{Title: "No URL"},
	}

	res, err := w.BulkIndex(context.Background(), models.KindArticle, records, "NY Times")
	require.NoError(t, err)
	require.Equal(t, indexing.Result{Success: 2, Failed: 0, Index: "articles-ny-times", Total: 2}, res)
	require.Equal(t, []string{"articles-ny-times"}, backend.created)
	require.Equal(t, 1, backend.bulkCalls)
	require.NotEmpty(t, backend.opaqueIDs[0])

	require.Len(t, backend.lines, 4)
	first := backend.lines[0]["index"].(map[string]any)
	require.Equal(t, "articles-ny-times", first["_index"])
	require.Equal(t, "cd69b81ea00cc2798797293cbc92d643", first["_id"])
	require.Equal(t, "2024-05-06T07:08:09.000Z", backend.lines[1]["indexed_date"])
	require.Equal(t, "With URL", backend.lines[1]["title"])

	second := backend.lines[2]["index"].(map[string]any)
	require.NotContains(t, second, "_id")
}

func TestBulkIndexExistingIndexIsNotRecreated(t *testing.T) {
	backend := &stubBackend{existing: map[string]bool{"tweets": true}}
	w := indexing.NewWriter(backend, "", logger.Discard())

	_, err := w.BulkIndex(context.Background(), models.KindSocialPost, []models.Record{models.SocialPost{ID: "7"}}, "tweets")
	require.NoError(t, err)
	require.Empty(t, backend.created)
	require.Equal(t, "7", backend.lines[0]["index"].(map[string]any)["_id"])
}

func TestBulkIndexCountsRejectedItems(t *testing.T) {
	backend := &stubBackend{reply: func(n int) *elasticsearch.BulkResponse {
		res := allCreated(n)
		res.Errors = true
		res.Items[1] = map[string]elasticsearch.BulkItem{"index": {
			Status: 400,
			Error:  &elasticsearch.BulkItemError{Type: "mapper_parsing_exception", Reason: "bad date"},
		}}
		return res
	}}
	w := indexing.NewWriter(backend, "", logger.Discard())

	records := []models.Record{
		models.SocialPost{ID: "1"},
		models.SocialPost{ID: "2", CreatedAt: "yesterday"},
		models.SocialPost{ID: "3"},
	}
	res, err := w.BulkIndex(context.Background(), models.KindSocialPost, records, "tweets")
	require.NoError(t, err)
	require.Equal(t, indexing.Result{Success: 2, Failed: 1, Index: "tweets", Total: 3}, res)
}

func TestBulkIndexRejectsMixedKinds(t *testing.T) {
	backend := &stubBackend{}
	w := indexing.NewWriter(backend, "", logger.Discard())

	records := []models.Record{models.Article{URL: "https://x"}, models.SocialPost{ID: "1"}}
	_, err := w.BulkIndex(context.Background(), models.KindArticle, records, "mixed")
	require.ErrorIs(t, err, indexing.ErrMixedKinds)
	require.Zero(t, backend.bulkCalls)
}

func TestBulkIndexPropagatesTransportErrors(t *testing.T) {
	backend := &stubBackend{bulkErr: errors.New("connection refused")}
	w := indexing.NewWriter(backend, "", logger.Discard())

	_, err := w.BulkIndex(context.Background(), models.KindArticle, []models.Record{models.Article{URL: "https://x"}}, "gnews")
	require.ErrorContains(t, err, "connection refused")
}

func TestMappings(t *testing.T) {
	article := indexing.ArticleMapping()["mappings"].(map[string]any)["properties"].(map[string]any)
	require.Equal(t, map[string]any{"type": "text", "analyzer": "english_analyzer"}, article["title"])
	require.Equal(t, map[string]any{"type": "keyword"}, article["url"])
	require.Equal(t, "strict_date_optional_time||epoch_millis", article["published_date"].(map[string]any)["format"])

	post := indexing.PostMapping()["mappings"].(map[string]any)["properties"].(map[string]any)
	require.Equal(t, map[string]any{"type": "text", "analyzer": "tweet_analyzer"}, post["text"])
	require.Equal(t, map[string]any{"type": "integer"}, post["like_count"])
}
