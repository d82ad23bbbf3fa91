package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/store"
)

func TestLoadNormalized(t *testing.T) {
	ctx := context.Background()

	t.Run("first observation rebases to 1.0", func(t *testing.T) {
		db := store.NewMemoryDatabase()
		db.Seed(indexPriceCollection,
			bson.M{"ts_code": "000300.SH", "trade_date": "20230104", "close": 4100.0},
			bson.M{"ts_code": "000300.SH", "trade_date": "20230103", "close": 4000.0},
			bson.M{"ts_code": "000300.SH", "trade_date": "20230105", "close": 4200.0},
		)
		repo := NewIndexRepository(db, zap.NewNop())

		ser, err := repo.LoadNormalized(ctx, "000300.SH", "20230101", "20230110")
		assert.NoError(t, err)
		assert.Equal(t, "000300.SH_norm", ser.Name)
		assert.Equal(t, 3, ser.Len())
		assert.Equal(t, 1.0, ser.Values[0])
		assert.InDelta(t, 4200.0/4000.0, ser.Values[2], 1e-12)
	})

	t.Run("zero base yields empty series", func(t *testing.T) {
		db := store.NewMemoryDatabase()
		db.Seed(indexPriceCollection,
			bson.M{"ts_code": "000300.SH", "trade_date": "20230103", "close": 0.0},
			bson.M{"ts_code": "000300.SH", "trade_date": "20230104", "close": 4100.0},
		)
		repo := NewIndexRepository(db, zap.NewNop())

		ser, err := repo.LoadNormalized(ctx, "000300.SH", "20230101", "20230110")
		assert.NoError(t, err)
		assert.Equal(t, "000300.SH_norm", ser.Name)
		assert.True(t, ser.Empty())
	})

	t.Run("falls back to stock collection", func(t *testing.T) {
		db := store.NewMemoryDatabase()
		db.Seed(dailyPriceCollection,
			bson.M{"symbol": "600000", "trade_date": "20230103", "close": 10.0},
			bson.M{"symbol": "600000", "trade_date": "20230104", "close": 11.0},
		)
		repo := NewIndexRepository(db, zap.NewNop())

		ser, err := repo.LoadNormalized(ctx, "600000.SH", "20230101", "20230110")
		assert.NoError(t, err)
		assert.Equal(t, 2, ser.Len())
		assert.Equal(t, 1.0, ser.Values[0])
		assert.InDelta(t, 1.1, ser.Values[1], 1e-12)
	})

	t.Run("no data anywhere yields empty named series", func(t *testing.T) {
		repo := NewIndexRepository(store.NewMemoryDatabase(), zap.NewNop())

		ser, err := repo.LoadNormalized(ctx, "000300.SH", "20230101", "20230110")
		assert.NoError(t, err)
		assert.Equal(t, "000300.SH_norm", ser.Name)
		assert.True(t, ser.Empty())
	})
}

func TestLoadRaw(t *testing.T) {
	ctx := context.Background()

	db := store.NewMemoryDatabase()
	db.Seed(indexPriceCollection,
		bson.M{"ts_code": "000300.SH", "trade_date": "20230103", "close": 4000.0},
		bson.M{"ts_code": "000300.SH", "trade_date": "20230104", "close": 4100.0},
	)
	// stock data exists but LoadRaw must not fall back to it
	db.Seed(dailyPriceCollection,
		bson.M{"symbol": "600000", "trade_date": "20230103", "close": 10.0},
	)
	repo := NewIndexRepository(db, zap.NewNop())

	t.Run("raw values unchanged", func(t *testing.T) {
		ser, err := repo.LoadRaw(ctx, "000300.SH", "20230101", "20230110")
		assert.NoError(t, err)
		assert.Equal(t, "000300.SH", ser.Name)
		assert.Equal(t, []float64{4000.0, 4100.0}, ser.Values)
	})

	t.Run("no stock fallback", func(t *testing.T) {
		ser, err := repo.LoadRaw(ctx, "600000.SH", "20230101", "20230110")
		assert.NoError(t, err)
		assert.True(t, ser.Empty())
	})
}
