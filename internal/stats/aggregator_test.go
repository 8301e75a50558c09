package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shootlink/shortener/internal/database/redis"
	"github.com/shootlink/shortener/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(t testing.TB) (*Aggregator, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
	})

	return NewAggregator(redis.NewStore(rdb), discardLogger()), mr
}

func today() string {
	return time.Now().UTC().Format(dateFormat)
}

func TestAggregator_RecordClick(t *testing.T) {
	ctx := context.Background()

	info := models.ReferrerInfo{
		Source:   "google",
		Medium:   "search",
		Referrer: "https://www.google.com/",
	}

	t.Run("single click updates every bucket", func(t *testing.T) {
		agg, mr := newTestAggregator(t)

		agg.RecordClick(ctx, "abc1234", info)

		assert.Equal(t, "1", mustGet(t, mr, "link:abc1234:clicks"))
		assert.Equal(t, "1", mustGet(t, mr, "stats:abc1234:total"))
		assert.Equal(t, "1", mr.HGet("stats:abc1234:daily", today()))
		assert.Equal(t, "1", mr.HGet("stats:abc1234:referrers", "google:search"))
		assert.Contains(t, mr.HGet("stats:abc1234:referrer_details", "google:search"), `"google (search)"`)
	})

	t.Run("detail snapshot is last-write-wins", func(t *testing.T) {
		agg, mr := newTestAggregator(t)

		first := info
		first.Campaign = "spring"
		second := info
		second.Campaign = "summer"

		agg.RecordClick(ctx, "abc1234", first)
		agg.RecordClick(ctx, "abc1234", second)

		detail := mr.HGet("stats:abc1234:referrer_details", "google:search")
		assert.Contains(t, detail, "summer")
		assert.NotContains(t, detail, "spring")

		assert.Equal(t, "2", mr.HGet("stats:abc1234:referrers", "google:search"))
	})

	t.Run("concurrent clicks never lose counts", func(t *testing.T) {
		const n = 50

		agg, mr := newTestAggregator(t)

		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				agg.RecordClick(ctx, "abc1234", info)
			}()
		}
		wg.Wait()

		assert.Equal(t, fmt.Sprint(n), mustGet(t, mr, "stats:abc1234:total"))
		assert.Equal(t, fmt.Sprint(n), mustGet(t, mr, "link:abc1234:clicks"))
		assert.Equal(t, fmt.Sprint(n), mr.HGet("stats:abc1234:daily", today()))
	})
}

func TestAggregator_RecordBeacon(t *testing.T) {
	ctx := context.Background()

	t.Run("with referrer", func(t *testing.T) {
		agg, mr := newTestAggregator(t)

		agg.RecordBeacon(ctx, "abc1234", "https://news.ycombinator.com/")

		assert.Equal(t, "1", mustGet(t, mr, "stats:abc1234:total"))
		assert.Equal(t, "1", mr.HGet("stats:abc1234:referrers", "https://news.ycombinator.com/"))
	})

	t.Run("without referrer", func(t *testing.T) {
		agg, mr := newTestAggregator(t)

		agg.RecordBeacon(ctx, "abc1234", "")

		assert.Equal(t, "1", mustGet(t, mr, "stats:abc1234:total"))
		assert.False(t, mr.Exists("stats:abc1234:referrers"))
	})
}

func TestAggregator_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("empty slug yields zeroes", func(t *testing.T) {
		agg, _ := newTestAggregator(t)

		stats, err := agg.Stats(ctx, "missing")

		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalClicks)
		assert.Len(t, stats.Last7Days, 7)
		for date, count := range stats.Last7Days {
			assert.Equal(t, int64(0), count, date)
		}
		assert.Empty(t, stats.TopReferrers)
	})

	t.Run("aggregates and ranks referrers", func(t *testing.T) {
		agg, _ := newTestAggregator(t)

		for i := 0; i < 3; i++ {
			agg.RecordClick(ctx, "abc1234", models.ReferrerInfo{Source: "google", Medium: "search"})
		}
		agg.RecordClick(ctx, "abc1234", models.ReferrerInfo{Source: "direct", Medium: "none"})

		stats, err := agg.Stats(ctx, "abc1234")

		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.TotalClicks)
		assert.Equal(t, int64(4), stats.Last7Days[today()])

		require.Len(t, stats.TopReferrers, 2)
		assert.Equal(t, models.ReferrerCount{Referrer: "google:search", Count: 3}, stats.TopReferrers[0])
		assert.Equal(t, models.ReferrerCount{Referrer: "direct:none", Count: 1}, stats.TopReferrers[1])
	})

	t.Run("top referrers are capped at ten", func(t *testing.T) {
		agg, _ := newTestAggregator(t)

		for i := 0; i < 15; i++ {
			agg.RecordClick(ctx, "abc1234", models.ReferrerInfo{
				Source: fmt.Sprintf("site%02d.com", i),
				Medium: "referral",
			})
		}

		stats, err := agg.Stats(ctx, "abc1234")

		require.NoError(t, err)
		assert.Len(t, stats.TopReferrers, 10)
	})
}

func TestAggregator_ReferrerDetails(t *testing.T) {
	ctx := context.Background()

	agg, mr := newTestAggregator(t)

	agg.RecordClick(ctx, "abc1234", models.ReferrerInfo{
		Source:   "facebook",
		Medium:   "social",
		IsMobile: true,
	})
	mr.HSet("stats:abc1234:referrer_details", "broken:entry", "not json")

	details, err := agg.ReferrerDetails(ctx, "abc1234")

	require.NoError(t, err)
	require.Len(t, details, 1)

	detail := details["facebook:social"]
	assert.Equal(t, "facebook (social)", detail.Display)
	assert.Equal(t, "facebook", detail.Source)
	assert.True(t, detail.IsMobile)
	assert.False(t, detail.Timestamp.IsZero())
}

func mustGet(t testing.TB, mr *miniredis.Miniredis, key string) string {
	t.Helper()

	val, err := mr.Get(key)
	require.NoError(t, err)

	return val
}
