package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/logger"
	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/stream"
)

type fakeWriter struct {
	msgs     []kafka.Message
	failures int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestWrapUnwrapArticle(t *testing.T) {
	article := models.Article{Title: "Héllo", URL: "https://example.com/a", Source: "NY Times"}

	env, err := stream.Wrap("nytimes", article)
	require.NoError(t, err)
	assert.Equal(t, "article", env.Kind)

	value, err := json.Marshal(env)
	require.NoError(t, err)

	source, rec, err := stream.Unwrap(value)
	require.NoError(t, err)
	assert.Equal(t, "nytimes", source)
	assert.Equal(t, article, rec)
}

func TestUnwrapRejectsBadEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not json", value: "{"},
		{name: "no source", value: `{"kind":"article","record":{}}`},
		{name: "unknown kind", value: `{"kind":"video","source":"x","record":{}}`},
		{name: "no record", value: `{"kind":"article","source":"x"}`},
		{name: "post without id", value: `{"kind":"post","source":"tweets","record":{"text":"hi"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := stream.Unwrap([]byte(tt.value))
			assert.Error(t, err)
		})
	}
}

func TestPublishKeysByStoreID(t *testing.T) {
	w := &fakeWriter{}
	p := stream.NewPublisher(w, logger.Discard())

	posts := []models.Record{
		models.SocialPost{ID: "1", Text: "one"},
		models.SocialPost{ID: "2", Text: "two"},
	}
	require.NoError(t, p.Publish(context.Background(), "tweets", posts))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "1", string(w.msgs[0].Key))
	assert.Equal(t, "2", string(w.msgs[1].Key))

	source, rec, err := stream.Unwrap(w.msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, "tweets", source)
	assert.Equal(t, models.KindSocialPost, rec.Kind())
}

func TestPublishRejectsPostWithoutID(t *testing.T) {
	w := &fakeWriter{}
	p := stream.NewPublisher(w, logger.Discard())

	err := p.Publish(context.Background(), "tweets", []models.Record{models.SocialPost{Text: "anon"}})
	require.ErrorIs(t, err, models.ErrMissingID)
	assert.Empty(t, w.msgs)
}

func TestDeadLetterRetriesAndAddsHeaders(t *testing.T) {
	w := &fakeWriter{failures: 1}
	msg := kafka.Message{Topic: "media_records", Partition: 2, Offset: 17, Value: []byte("{")}

	require.NoError(t, stream.DeadLetter(context.Background(), logger.Discard(), w, msg, errors.New("decode envelope")))
	require.Len(t, w.msgs, 1)

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "media_records", headers["original_topic"])
	assert.Equal(t, "2", headers["original_partition"])
	assert.Equal(t, "17", headers["original_offset"])
	assert.Equal(t, "decode envelope", headers["error"])
}

func TestDeadLetterStopsOnCancel(t *testing.T) {
	w := &fakeWriter{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := stream.DeadLetter(ctx, logger.Discard(), w, kafka.Message{}, errors.New("boom"))
	assert.ErrorIs(t, err, context.Canceled)
}
