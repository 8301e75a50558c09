// Package stats records and reads click statistics. Every write goes
// through the store's atomic increment primitives, so concurrent clicks
// never lose counts to read-modify-write races. Recording is strictly
// best effort: a failed write is logged and never aborts the remaining
// writes or the surrounding request.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shootlink/shortener/internal/database"
	"github.com/shootlink/shortener/internal/models"
	"github.com/shootlink/shortener/internal/referrer"
)

const (
	dateFormat = "2006-01-02"

	topReferrerLimit = 10
	summaryDays      = 7
)

type statsStore interface {
	Get(ctx context.Context, key string) (string, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

type Aggregator struct {
	store  statsStore
	logger *slog.Logger
}

func NewAggregator(store statsStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger,
	}
}

func clicksKey(slug string) string    { return "link:" + slug + ":clicks" }
func totalKey(slug string) string     { return "stats:" + slug + ":total" }
func dailyKey(slug string) string     { return "stats:" + slug + ":daily" }
func referrersKey(slug string) string { return "stats:" + slug + ":referrers" }
func detailsKey(slug string) string   { return "stats:" + slug + ":referrer_details" }

// RecordClick registers one redirect: total counters, today's daily
// bucket, the source:medium bucket, and a last-write-wins detail
// snapshot for that bucket. The four writes have no required ordering;
// each applies independently.
func (a *Aggregator) RecordClick(ctx context.Context, slug string, info models.ReferrerInfo) {
	const op = "stats.Aggregator.RecordClick"

	now := time.Now().UTC()
	today := now.Format(dateFormat)
	referrerKey := referrer.Key(info)

	if _, err := a.store.IncrBy(ctx, clicksKey(slug), 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}
	if _, err := a.store.IncrBy(ctx, totalKey(slug), 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}
	if _, err := a.store.HIncrBy(ctx, dailyKey(slug), today, 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}
	if _, err := a.store.HIncrBy(ctx, referrersKey(slug), referrerKey, 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}

	detail := models.ReferrerDetail{
		Display:   referrer.FormatDisplay(info),
		Source:    info.Source,
		Medium:    info.Medium,
		Campaign:  info.Campaign,
		IsMobile:  info.IsMobile,
		IsApp:     info.IsApp,
		Timestamp: now,
	}

	data, err := json.Marshal(detail)
	if err != nil {
		a.logWriteFailure(op, slug, err)
		return
	}

	if err := a.store.HSet(ctx, detailsKey(slug), map[string]string{referrerKey: string(data)}); err != nil {
		a.logWriteFailure(op, slug, err)
	}
}

// RecordBeacon registers a click reported by the stats page beacon.
// The raw referrer string, when present, is bucketed as-is.
func (a *Aggregator) RecordBeacon(ctx context.Context, slug, rawReferrer string) {
	const op = "stats.Aggregator.RecordBeacon"

	today := time.Now().UTC().Format(dateFormat)

	if _, err := a.store.IncrBy(ctx, clicksKey(slug), 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}
	if _, err := a.store.IncrBy(ctx, totalKey(slug), 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}
	if _, err := a.store.HIncrBy(ctx, dailyKey(slug), today, 1); err != nil {
		a.logWriteFailure(op, slug, err)
	}

	if rawReferrer != "" {
		if _, err := a.store.HIncrBy(ctx, referrersKey(slug), rawReferrer, 1); err != nil {
			a.logWriteFailure(op, slug, err)
		}
	}
}

// Stats assembles the read model for a link: total clicks, a zero-filled
// last-7-days map, and the top referrer buckets sorted by count.
// Partially applied writes are tolerated: each field reads whatever the
// store currently holds.
func (a *Aggregator) Stats(ctx context.Context, slug string) (*models.LinkStats, error) {
	const op = "stats.Aggregator.Stats"

	var total int64
	val, err := a.store.Get(ctx, totalKey(slug))
	switch {
	case err == nil:
		total, _ = strconv.ParseInt(val, 10, 64)
	case !errors.Is(err, database.ErrKeyNotFound):
		return nil, fmt.Errorf("%s: failed to get total clicks: %w", op, err)
	}

	daily, err := a.store.HGetAll(ctx, dailyKey(slug))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get daily clicks: %w", op, err)
	}

	last7Days := make(map[string]int64, summaryDays)
	today := time.Now().UTC()
	for i := summaryDays - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format(dateFormat)
		count, _ := strconv.ParseInt(daily[date], 10, 64)
		last7Days[date] = count
	}

	referrers, err := a.store.HGetAll(ctx, referrersKey(slug))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get referrer counts: %w", op, err)
	}

	top := make([]models.ReferrerCount, 0, len(referrers))
	for key, val := range referrers {
		count, _ := strconv.ParseInt(val, 10, 64)
		top = append(top, models.ReferrerCount{Referrer: key, Count: count})
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Referrer < top[j].Referrer
	})

	if len(top) > topReferrerLimit {
		top = top[:topReferrerLimit]
	}

	return &models.LinkStats{
		TotalClicks:  total,
		Last7Days:    last7Days,
		TopReferrers: top,
	}, nil
}

// ReferrerDetails returns the latest snapshot per referrer bucket.
// Malformed entries are skipped.
func (a *Aggregator) ReferrerDetails(ctx context.Context, slug string) (map[string]models.ReferrerDetail, error) {
	const op = "stats.Aggregator.ReferrerDetails"

	fields, err := a.store.HGetAll(ctx, detailsKey(slug))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get referrer details: %w", op, err)
	}

	details := make(map[string]models.ReferrerDetail, len(fields))
	for key, val := range fields {
		var detail models.ReferrerDetail
		if err := json.Unmarshal([]byte(val), &detail); err != nil {
			a.logger.Warn(
				"skipping malformed referrer detail",
				slog.Group(op, slog.String("slug", slug), slog.String("referrer_key", key), slog.Any("err", err)),
			)
			continue
		}
		details[key] = detail
	}

	return details, nil
}

func (a *Aggregator) logWriteFailure(op, slug string, err error) {
	a.logger.Warn(
		"best-effort stats write failed",
		slog.Group(op, slog.String("slug", slug), slog.Any("err", err)),
	)
}
