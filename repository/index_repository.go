package repository

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/model"
	"stockdata/store"
)

const indexPriceCollection = "index_prices"

// IndexRepository handles read access to benchmark index series
type IndexRepository struct {
	indexColl store.Collection
	stockColl store.Collection
	logger    *zap.Logger
}

// NewIndexRepository creates a new index repository
func NewIndexRepository(db store.Database, logger *zap.Logger) *IndexRepository {
	return &IndexRepository{
		indexColl: db.Collection(indexPriceCollection),
		stockColl: db.Collection(dailyPriceCollection),
		logger:    logger,
	}
}

// LoadNormalized returns the index close series rebased to its first
// observation. When the index collection has no rows for the code, the
// code's non-suffix prefix is tried as a tradable stock symbol instead.
// An empty source series, or one starting at zero, yields an empty series
// named `<code>_norm` rather than a division by zero.
func (r *IndexRepository) LoadNormalized(ctx context.Context, tsCode, startDate, endDate string) (model.Series, error) {
	name := tsCode + "_norm"

	docs, err := r.indexSeries(ctx, tsCode, startDate, endDate)
	if err != nil {
		return model.Series{}, err
	}

	if len(docs) == 0 {
		symbol := tsCode
		if i := strings.Index(tsCode, "."); i > 0 {
			symbol = tsCode[:i]
		}
		err = r.stockColl.Find(ctx,
			bson.M{
				"symbol":     symbol,
				"trade_date": bson.M{"$gte": startDate, "$lte": endDate},
			},
			store.FindOptions{
				Projection: bson.M{"trade_date": 1, "close": 1},
				Sort:       bson.D{{Key: "trade_date", Value: 1}},
			},
			&docs)
		if err != nil {
			r.logger.Error("Failed to load stock fallback series",
				zap.Error(err),
				zap.String("symbol", symbol))
			return model.Series{}, err
		}
		if len(docs) == 0 {
			return model.Series{Name: name}, nil
		}
	}

	return r.toSeries(docs, tsCode).Rebase(name), nil
}

// LoadRaw returns the index close series without rebasing. There is no
// stock-collection fallback on this path.
func (r *IndexRepository) LoadRaw(ctx context.Context, tsCode, startDate, endDate string) (model.Series, error) {
	docs, err := r.indexSeries(ctx, tsCode, startDate, endDate)
	if err != nil {
		return model.Series{}, err
	}
	return r.toSeries(docs, tsCode), nil
}

func (r *IndexRepository) indexSeries(ctx context.Context, tsCode, startDate, endDate string) ([]model.IndexPrice, error) {
	var docs []model.IndexPrice
	err := r.indexColl.Find(ctx,
		bson.M{
			"ts_code":    tsCode,
			"trade_date": bson.M{"$gte": startDate, "$lte": endDate},
		},
		store.FindOptions{
			Projection: bson.M{"trade_date": 1, "close": 1},
			Sort:       bson.D{{Key: "trade_date", Value: 1}},
		},
		&docs)
	if err != nil {
		r.logger.Error("Failed to load index series",
			zap.Error(err),
			zap.String("ts_code", tsCode))
		return nil, err
	}
	return docs, nil
}

func (r *IndexRepository) toSeries(docs []model.IndexPrice, name string) model.Series {
	ser := model.Series{Name: name}
	for _, d := range docs {
		dt, err := model.ParseTradeDate(d.TradeDate)
		if err != nil {
			r.logger.Warn("Skipping index row with malformed trade_date",
				zap.String("trade_date", d.TradeDate))
			continue
		}
		ser.Dates = append(ser.Dates, dt)
		ser.Values = append(ser.Values, d.Close)
	}
	return ser
}
