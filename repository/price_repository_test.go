package repository

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/store"
)

// countingDatabase wraps the memory store and counts store round trips,
// used to verify the resolver cache actually short-circuits queries.
type countingDatabase struct {
	inner    store.Database
	findOnes int
	finds    int
}

func (d *countingDatabase) Collection(name string) store.Collection {
	return &countingCollection{inner: d.inner.Collection(name), db: d}
}

type countingCollection struct {
	inner store.Collection
	db    *countingDatabase
}

func (c *countingCollection) FindOne(ctx context.Context, filter bson.M, opts store.FindOptions, out interface{}) error {
	c.db.findOnes++
	return c.inner.FindOne(ctx, filter, opts, out)
}

func (c *countingCollection) Find(ctx context.Context, filter bson.M, opts store.FindOptions, out interface{}) error {
	c.db.finds++
	return c.inner.Find(ctx, filter, opts, out)
}

func (c *countingCollection) Distinct(ctx context.Context, field string, filter bson.M) ([]string, error) {
	return c.inner.Distinct(ctx, field, filter)
}

func seedPriceDB() *store.MemoryDatabase {
	db := store.NewMemoryDatabase()
	db.Seed(stockInfoCollection,
		bson.M{"symbol": "600000", "ts_code": "600000.SH", "name": "PuFa Bank"},
		bson.M{"symbol": "000001", "ts_code": "000001.SZ", "name": "PingAn Bank"},
	)
	db.Seed(dailyPriceCollection,
		bson.M{"symbol": "600000", "ts_code": "600000.SH", "trade_date": "20230103",
			"open": 10.0, "high": 10.6, "low": 9.9, "close": 10.5, "volume": 1000.0},
		bson.M{"symbol": "600000", "ts_code": "600000.SH", "trade_date": "20230104",
			"open": 10.5, "high": 10.8, "low": 10.3, "close": 10.7, "volume": 1200.0},
		// duplicate date, must be dropped from the table
		bson.M{"symbol": "600000", "ts_code": "600000.SH", "trade_date": "20230104",
			"open": 10.5, "high": 10.8, "low": 10.3, "close": 10.7, "volume": 1200.0},
		// outside the queried range
		bson.M{"symbol": "600000", "ts_code": "600000.SH", "trade_date": "20230110",
			"open": 11.0, "high": 11.2, "low": 10.9, "close": 11.1, "volume": 900.0},
		bson.M{"symbol": "000001", "ts_code": "000001.SZ", "trade_date": "20230104",
			"open": 8.0, "high": 8.3, "low": 7.9, "close": 8.2, "volume": 2000.0},
		bson.M{"symbol": "000001", "ts_code": "000001.SZ", "trade_date": "20230105",
			"open": 8.2, "high": 8.4, "low": 8.1, "close": 8.3, "volume": 2100.0},
	)
	return db
}

func TestResolveTSCodeCaching(t *testing.T) {
	counting := &countingDatabase{inner: seedPriceDB()}
	repo := NewPriceRepository(counting, false, zap.NewNop())
	ctx := context.Background()

	ts, err := repo.ResolveTSCode(ctx, "600000")
	assert.NoError(t, err)
	assert.Equal(t, "600000.SH", ts)
	assert.Equal(t, 1, counting.findOnes)

	// second call must come from the cache
	ts, err = repo.ResolveTSCode(ctx, "600000")
	assert.NoError(t, err)
	assert.Equal(t, "600000.SH", ts)
	assert.Equal(t, 1, counting.findOnes)

	t.Run("unknown symbol is not an error", func(t *testing.T) {
		ts, err := repo.ResolveTSCode(ctx, "999999")
		assert.NoError(t, err)
		assert.Equal(t, "", ts)
	})

	t.Run("invalidate clears the cache", func(t *testing.T) {
		repo.InvalidateSymbols()
		before := counting.findOnes
		_, err := repo.ResolveTSCode(ctx, "600000")
		assert.NoError(t, err)
		assert.Equal(t, before+1, counting.findOnes)
	})
}

func TestResolveMany(t *testing.T) {
	counting := &countingDatabase{inner: seedPriceDB()}
	repo := NewPriceRepository(counting, false, zap.NewNop())
	ctx := context.Background()

	got, err := repo.ResolveMany(ctx, []string{"600000", "000001", "999999"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{
		"600000": "600000.SH",
		"000001": "000001.SZ",
		"999999": "",
	}, got)
	assert.Equal(t, 1, counting.finds)

	// fully cached batch issues no further queries for the cached symbols
	got, err = repo.ResolveMany(ctx, []string{"600000", "000001"})
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, counting.finds)
}

func TestFetchNames(t *testing.T) {
	repo := NewPriceRepository(seedPriceDB(), false, zap.NewNop())

	names, err := repo.FetchNames(context.Background(), []string{"600000", "999999"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"600000": "PuFa Bank"}, names)
}

func TestFetchBatch(t *testing.T) {
	repo := NewPriceRepository(seedPriceDB(), false, zap.NewNop())

	tables, err := repo.FetchBatch(context.Background(), []string{"600000", "000001"}, "20230101", "20230106")
	assert.NoError(t, err)
	assert.Len(t, tables, 2)

	t.Run("rows in range, ascending, no duplicates", func(t *testing.T) {
		tab := tables["600000"]
		assert.Equal(t, 2, tab.Len())
		assert.True(t, tab.Dates[0].Before(tab.Dates[1]))
		assert.Equal(t, []float64{10.5, 10.7}, tab.Close)
	})

	t.Run("pct_chg column absent when data lacks it", func(t *testing.T) {
		assert.False(t, tables["600000"].HasPctChg())
	})
}

func TestFetchBatchWithPctChg(t *testing.T) {
	db := store.NewMemoryDatabase()
	db.Seed(dailyPriceCollection,
		bson.M{"symbol": "600000", "trade_date": "20230103",
			"open": 10.0, "high": 10.6, "low": 9.9, "close": 10.5, "volume": 1000.0, "pct_chg": 1.2},
		bson.M{"symbol": "600000", "trade_date": "20230104",
			"open": 10.5, "high": 10.8, "low": 10.3, "close": 10.7, "volume": 1200.0},
	)
	repo := NewPriceRepository(db, false, zap.NewNop())

	tables, err := repo.FetchBatch(context.Background(), []string{"600000"}, "20230101", "20230106")
	assert.NoError(t, err)

	tab := tables["600000"]
	assert.True(t, tab.HasPctChg())
	assert.Equal(t, 1.2, tab.PctChg[0])
	assert.True(t, math.IsNaN(tab.PctChg[1]))
}

func TestFetchBatchMixedIntraday(t *testing.T) {
	db := store.NewMemoryDatabase()
	db.Seed(intradayPriceCollection,
		bson.M{"symbol": "600000", "trade_date": "202301040930",
			"open": 10.0, "high": 10.1, "low": 9.9, "close": 10.0, "volume": 100.0},
		bson.M{"symbol": "600000", "trade_date": "20230104",
			"open": 10.0, "high": 10.6, "low": 9.9, "close": 10.5, "volume": 1000.0},
	)
	repo := NewPriceRepository(db, true, zap.NewNop())

	tables, err := repo.FetchBatch(context.Background(), []string{"600000"}, "20230101", "20230109")
	assert.NoError(t, err)
	assert.Equal(t, 2, tables["600000"].Len())
}

func TestFetchFrame(t *testing.T) {
	repo := NewPriceRepository(seedPriceDB(), false, zap.NewNop())
	ctx := context.Background()

	t.Run("forward fill propagates across gaps", func(t *testing.T) {
		frame, err := repo.FetchFrame(ctx, []string{"600000", "000001"}, "20230101", "20230106", true)
		assert.NoError(t, err)
		// union axis: 20230103, 20230104, 20230105
		assert.Equal(t, 3, frame.Len())

		closes := frame.Column("600000", "close")
		assert.Equal(t, 10.5, closes[0])
		assert.Equal(t, 10.7, closes[1])
		// 600000 has no 20230105 bar, the fill carries 10.7 forward
		assert.Equal(t, 10.7, closes[2])
	})

	t.Run("no fill leaves gaps as NaN", func(t *testing.T) {
		frame, err := repo.FetchFrame(ctx, []string{"600000", "000001"}, "20230101", "20230106", false)
		assert.NoError(t, err)

		closes := frame.Column("600000", "close")
		assert.True(t, math.IsNaN(closes[2]))
		// leading gap for 000001 on 20230103
		assert.True(t, math.IsNaN(frame.Column("000001", "close")[0]))
	})

	t.Run("empty result", func(t *testing.T) {
		frame, err := repo.FetchFrame(ctx, []string{"999999"}, "20230101", "20230106", true)
		assert.NoError(t, err)
		assert.True(t, frame.Empty())
	})
}

func TestFetchLatestClose(t *testing.T) {
	db := store.NewMemoryDatabase()
	db.Seed(dailyPriceCollection,
		bson.M{"ts_code": "000001.SZ", "trade_date": "20230105", "close": 8.3},
		// stored without the exchange suffix
		bson.M{"ts_code": "600000", "trade_date": "20230105", "close": 11.5},
	)
	repo := NewPriceRepository(db, false, zap.NewNop())
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		got, err := repo.FetchLatestClose(ctx, []string{"000001.SZ"}, "20230105")
		assert.NoError(t, err)
		assert.Equal(t, map[string]float64{"000001.SZ": 8.3}, got)
	})

	t.Run("suffix fallback keyed by original input", func(t *testing.T) {
		got, err := repo.FetchLatestClose(ctx, []string{"600000.SH"}, "20230105")
		assert.NoError(t, err)
		assert.Equal(t, map[string]float64{"600000.SH": 11.5}, got)
	})

	t.Run("absent symbol omitted", func(t *testing.T) {
		got, err := repo.FetchLatestClose(ctx, []string{"999999.SH"}, "20230105")
		assert.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFetchMarketSpectrum(t *testing.T) {
	db := store.NewMemoryDatabase()
	db.Seed(marketSpectrumCollection,
		bson.M{"trade_date": "20230104", "yin_spectrum": 0.4, "yang_spectrum": 0.6, "total_stocks": 5000},
		bson.M{"trade_date": "20230103", "yin_spectrum": 0.5, "yang_spectrum": 0.5, "total_stocks": 5000},
		bson.M{"trade_date": "20230110", "yin_spectrum": 0.3, "yang_spectrum": 0.7, "total_stocks": 5001},
	)
	repo := NewPriceRepository(db, false, zap.NewNop())

	rows, err := repo.FetchMarketSpectrum(context.Background(), "20230101", "20230106")
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.True(t, rows[0].Date.Before(rows[1].Date))
	assert.Equal(t, 0.5, rows[0].YinSpectrum)
}
