package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/dedupe"
	"github.com/DeafMist/media-aggregator/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newCache(capacity int, ttl time.Duration) (*dedupe.Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := dedupe.NewCache(capacity, ttl)
	cache.SetClock(clock.now)
	return cache, clock
}

func TestCacheSeenDuplicate(t *testing.T) {
	cache, _ := newCache(10, time.Minute)
	require.False(t, cache.IsSeen("alpha"))
	cache.MarkSeen("alpha")
	require.True(t, cache.IsSeen("alpha"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, clock := newCache(10, time.Minute)
	cache.MarkSeen("beta")
	clock.advance(61 * time.Second)
	require.False(t, cache.IsSeen("beta"))

	cache.MarkSeen("gamma")
	require.Equal(t, 1, cache.Len())
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache, clock := newCache(1, time.Minute)
	cache.MarkSeen("first")
	clock.advance(time.Second)
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
	require.Equal(t, 1, cache.Len())
}

func TestCacheRemarkKeepsKeyAlive(t *testing.T) {
	cache, clock := newCache(2, time.Minute)
	cache.MarkSeen("a")
	clock.advance(time.Second)
	cache.MarkSeen("b")
	clock.advance(time.Second)
	cache.MarkSeen("a")
	clock.advance(time.Second)
	cache.MarkSeen("c")

	require.True(t, cache.IsSeen("a"))
	require.False(t, cache.IsSeen("b"))
	require.True(t, cache.IsSeen("c"))
}

func TestKey(t *testing.T) {
	key, err := dedupe.Key("nytimes", models.Article{URL: "https://example.com/a"})
	require.NoError(t, err)
	require.Equal(t, "article/nytimes/2dce0a4c50441bfccfa9caf4b58c3cba6e06c420505dd829f0436de1aa44baac", key)

	key, err = dedupe.Key("tweets", models.SocialPost{ID: "99"})
	require.NoError(t, err)
	require.Equal(t, "post/tweets/99", key)

	_, err = dedupe.Key("tweets", models.SocialPost{})
	require.ErrorIs(t, err, models.ErrMissingID)
}
