package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/models"
)

func TestArticleStoreID(t *testing.T) {
	a := models.Article{Title: "ignored", URL: "https://example.com/a"}
	id, err := a.StoreID()
	require.NoError(t, err)
	require.Equal(t, "2dce0a4c50441bfccfa9caf4b58c3cba6e06c420505dd829f0436de1aa44baac", id)

	again, err := a.StoreID()
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestArticleStoreIDFallback(t *testing.T) {
	id, err := models.Article{Title: "Title", PublishedDate: "2024-01-01"}.StoreID()
	require.NoError(t, err)
	require.Equal(t, "68b6f00016b46eb6997b54f5544f6afa5dfc8758e87a8a65d479fb1999326a58", id)

	// empty title and date collide on the digest of ""
	a, _ := models.Article{}.StoreID()
	b, _ := models.Article{Source: "other"}.StoreID()
	require.Equal(t, a, b)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", a)
}

func TestArticleDocumentID(t *testing.T) {
	a := models.Article{URL: "https://example.com/a"}
	require.Equal(t, "cd69b81ea00cc2798797293cbc92d643", a.DocumentID())

	storeID, err := a.StoreID()
	require.NoError(t, err)
	require.NotEqual(t, storeID, a.DocumentID())

	require.Empty(t, models.Article{Title: "no url"}.DocumentID())
}

func TestSocialPostIdentity(t *testing.T) {
	p := models.SocialPost{ID: "1790", Text: "hello"}
	id, err := p.StoreID()
	require.NoError(t, err)
	require.Equal(t, "1790", id)
	require.Equal(t, "1790", p.DocumentID())

	_, err = models.SocialPost{Text: "no id"}.StoreID()
	require.ErrorIs(t, err, models.ErrMissingID)
}

func TestSocialPostValidate(t *testing.T) {
	require.NoError(t, models.SocialPost{ID: "1"}.Validate())
	require.ErrorIs(t, models.SocialPost{}.Validate(), models.ErrMissingID)
	require.ErrorIs(t, models.SocialPost{ID: "1", LikeCount: -1}.Validate(), models.ErrNegativeCount)
}

func TestSocialPostDecodesNumericIDs(t *testing.T) {
	rec, err := models.Decode(models.KindSocialPost, []byte(`{"id": 1790012345678901234, "user_id": 42, "text": "hi"}`))
	require.NoError(t, err)

	post := rec.(models.SocialPost)
	require.Equal(t, models.FlexibleID("1790012345678901234"), post.ID)
	require.Equal(t, models.FlexibleID("42"), post.UserID)

	_, err = models.Decode(models.KindSocialPost, []byte(`{"text": "no id"}`))
	require.ErrorIs(t, err, models.ErrMissingID)

	_, err = models.Decode(models.KindSocialPost, []byte(`{"id": true}`))
	require.Error(t, err)
}

func TestDecodeRejectsEmptyRecords(t *testing.T) {
	for _, raw := range []string{`null`, `{}`, `{"source": "gnews"}`} {
		_, err := models.Decode(models.KindArticle, []byte(raw))
		require.ErrorIs(t, err, models.ErrEmptyRecord, raw)
	}

	_, err := models.Decode(models.KindSocialPost, []byte(`null`))
	require.ErrorIs(t, err, models.ErrMissingID)

	rec, err := models.Decode(models.KindArticle, []byte(`{"title": "only a title"}`))
	require.NoError(t, err)
	require.Equal(t, models.Article{Title: "only a title"}, rec)
}

func TestDocumentAddsIndexedDate(t *testing.T) {
	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	a := models.Article{Title: "Hello", URL: "https://example.com/a", Source: "NY Times"}

	data, err := json.Marshal(a.Document(at))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "Hello", doc["title"])
	require.Equal(t, "NY Times", doc["source"])
	require.Equal(t, "2024-03-04T05:06:07.000Z", doc["indexed_date"])
	require.NotContains(t, doc, "abstract")

	// the record itself is untouched
	require.Equal(t, models.Article{Title: "Hello", URL: "https://example.com/a", Source: "NY Times"}, a)
}

func TestIndexedDateIsUTCMillis(t *testing.T) {
	at := time.Date(2024, 3, 4, 8, 6, 7, 123456789, time.FixedZone("MSK", 3*60*60))

	doc := models.SocialPost{ID: "1"}.Document(at).(models.IndexedPost)
	require.Equal(t, "2024-03-04T05:06:07.123Z", doc.IndexedDate)
}

func TestParseKind(t *testing.T) {
	k, err := models.ParseKind("tweets")
	require.NoError(t, err)
	require.Equal(t, models.KindSocialPost, k)

	k, err = models.ParseKind("article")
	require.NoError(t, err)
	require.Equal(t, models.KindArticle, k)

	_, err = models.ParseKind("video")
	require.Error(t, err)
}
