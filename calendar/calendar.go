// Package calendar resolves trading dates within a range from two
// sources: the external calendar provider and the trade dates actually
// observed in the local price collection.
package calendar

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/store"
)

const dailyPriceCollection = "volume_price"

// Prefer selects which source strategy is tried first
type Prefer string

const (
	// PreferProvider tries the external calendar provider first
	PreferProvider Prefer = "provider"
	// PreferLocal tries the local store first
	PreferLocal Prefer = "local"
)

// Source identifies which strategy produced a result
type Source string

const (
	SourceProvider Source = "provider"
	SourceLocal    Source = "local"
	// SourceNone means both strategies came back empty
	SourceNone Source = "none"
)

// Result carries the resolved trading dates together with their origin,
// so callers can tell a confirmed-empty range from a provider failure
// that fell through to the other source.
type Result struct {
	Dates  []string
	Source Source
}

// Provider is the external trading-calendar boundary
type Provider interface {
	TradingDates(ctx context.Context, exchange, startDate, endDate string) ([]string, error)
}

// Calendar resolves trading dates with a configurable source preference
type Calendar struct {
	provider Provider
	db       store.Database
	logger   *zap.Logger
}

// NewCalendar creates a calendar over the given provider and store.
// The provider may be nil, in which case only the local store is used.
func NewCalendar(provider Provider, db store.Database, logger *zap.Logger) *Calendar {
	return &Calendar{
		provider: provider,
		db:       db,
		logger:   logger,
	}
}

// TradingDates returns the sorted trading dates in [startDate, endDate].
// The preferred strategy runs first; the other runs only when the first
// yields nothing. Provider errors are logged and treated as empty
// results, never raised; a local-store failure propagates instead, so a
// dead store is never mistaken for a confirmed-empty range.
func (c *Calendar) TradingDates(ctx context.Context, startDate, endDate string, prefer Prefer) (Result, error) {
	if prefer == PreferLocal {
		dates, err := c.localDates(ctx, startDate, endDate)
		if err != nil {
			return Result{Source: SourceNone}, err
		}
		if len(dates) > 0 {
			return Result{Dates: dates, Source: SourceLocal}, nil
		}
		if dates := c.providerDates(ctx, startDate, endDate); len(dates) > 0 {
			return Result{Dates: dates, Source: SourceProvider}, nil
		}
		return Result{Source: SourceNone}, nil
	}

	if dates := c.providerDates(ctx, startDate, endDate); len(dates) > 0 {
		return Result{Dates: dates, Source: SourceProvider}, nil
	}
	dates, err := c.localDates(ctx, startDate, endDate)
	if err != nil {
		return Result{Source: SourceNone}, err
	}
	if len(dates) > 0 {
		return Result{Dates: dates, Source: SourceLocal}, nil
	}
	return Result{Source: SourceNone}, nil
}

func (c *Calendar) providerDates(ctx context.Context, startDate, endDate string) []string {
	if c.provider == nil {
		return nil
	}

	dates, err := c.provider.TradingDates(ctx, "", startDate, endDate)
	if err != nil {
		c.logger.Warn("calendar provider failed, treating as empty",
			zap.Error(err),
			zap.String("startDate", startDate),
			zap.String("endDate", endDate))
		return nil
	}
	return dates
}

func (c *Calendar) localDates(ctx context.Context, startDate, endDate string) ([]string, error) {
	coll := c.db.Collection(dailyPriceCollection)
	filter := bson.M{"trade_date": bson.M{"$gte": startDate, "$lte": endDate}}

	days, err := coll.Distinct(ctx, "trade_date", filter)
	if err == nil {
		sort.Strings(days)
		return days, nil
	}
	c.logger.Warn("distinct trade_date failed, scanning", zap.Error(err))

	// Scan-and-dedupe fallback for stores without distinct support. A
	// failure of the scan itself is a store failure, not a missing
	// capability, and propagates to the caller.
	var bars []struct {
		TradeDate string `bson:"trade_date"`
	}
	opts := store.FindOptions{Projection: bson.M{"trade_date": 1}}
	if err := coll.Find(ctx, filter, opts, &bars); err != nil {
		c.logger.Error("trade_date scan failed", zap.Error(err))
		return nil, fmt.Errorf("scanning trade dates: %w", err)
	}

	seen := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b.TradeDate != "" {
			seen[b.TradeDate] = struct{}{}
		}
	}
	days = make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Strings(days)
	return days, nil
}
