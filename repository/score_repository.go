package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/model"
	"stockdata/store"
)

const scoreCollection = "stock_scores"

// compositeStyles are the named aggregate scoring dimensions stored under
// the nested composite_score sub-document rather than as scalar fields.
var compositeStyles = map[string]struct{}{
	"balanced":         {},
	"aggressive":       {},
	"conservative":     {},
	"defensive":        {},
	"value_oriented":   {},
	"trading_oriented": {},
	"growth_oriented":  {},
	"cycle_oriented":   {},
}

// ScoreRepository handles read access to per-date symbol scores
type ScoreRepository struct {
	coll   store.Collection
	logger *zap.Logger
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db store.Database, logger *zap.Logger) *ScoreRepository {
	return &ScoreRepository{
		coll:   db.Collection(scoreCollection),
		logger: logger,
	}
}

// resolveNearestScoreDate maps a requested date to the nearest date that
// actually has scores: an exact match, else the latest score_date at or
// before the request, else the globally latest score_date. With no scores
// at all the input comes back unchanged and downstream queries run empty.
func (r *ScoreRepository) resolveNearestScoreDate(ctx context.Context, scoreDate string) (string, error) {
	var probe bson.M
	err := r.coll.FindOne(ctx,
		bson.M{"score_date": scoreDate},
		store.FindOptions{Projection: bson.M{"_id": 1}},
		&probe)
	if err == nil {
		return scoreDate, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	var prev []model.ScoreRecord
	err = r.coll.Find(ctx,
		bson.M{"score_date": bson.M{"$lte": scoreDate}},
		store.FindOptions{
			Projection: bson.M{"score_date": 1},
			Sort:       bson.D{{Key: "score_date", Value: -1}},
			Limit:      1,
		},
		&prev)
	if err != nil {
		return "", err
	}
	if len(prev) > 0 {
		return prev[0].ScoreDate, nil
	}

	var latest []model.ScoreRecord
	err = r.coll.Find(ctx,
		bson.M{},
		store.FindOptions{
			Projection: bson.M{"score_date": 1},
			Sort:       bson.D{{Key: "score_date", Value: -1}},
			Limit:      1,
		},
		&latest)
	if err != nil {
		return "", err
	}
	if len(latest) > 0 {
		return latest[0].ScoreDate, nil
	}
	return scoreDate, nil
}

// SelectTopSymbols returns the topN symbols ranked descending by the named
// dimension on scoreDate. Composite style names sort on the nested
// composite field; anything else sorts on `<dimension>_score`. Only
// records carrying the sort field are eligible, and ties come back in
// store order.
func (r *ScoreRepository) SelectTopSymbols(ctx context.Context, scoreDate, dimension string, topN int, autoResolve bool) ([]string, error) {
	_, symbols, err := r.selectTop(ctx, scoreDate, dimension, topN, autoResolve)
	return symbols, err
}

// SelectTopWithDate is SelectTopSymbols plus the score date actually used
// after nearest-date resolution.
func (r *ScoreRepository) SelectTopWithDate(ctx context.Context, scoreDate, dimension string, topN int, autoResolve bool) (string, []string, error) {
	return r.selectTop(ctx, scoreDate, dimension, topN, autoResolve)
}

func (r *ScoreRepository) selectTop(ctx context.Context, scoreDate, dimension string, topN int, autoResolve bool) (string, []string, error) {
	usedDate := scoreDate
	if autoResolve {
		resolved, err := r.resolveNearestScoreDate(ctx, scoreDate)
		if err != nil {
			r.logger.Error("Failed to resolve score date",
				zap.Error(err),
				zap.String("score_date", scoreDate))
			return "", nil, err
		}
		usedDate = resolved
	}

	sortField := dimension + "_score"
	if _, ok := compositeStyles[dimension]; ok {
		sortField = "composite_score." + dimension
	}

	var records []model.ScoreRecord
	err := r.coll.Find(ctx,
		bson.M{
			"score_date": usedDate,
			sortField:    bson.M{"$exists": true},
		},
		store.FindOptions{
			Projection: bson.M{"symbol": 1, sortField: 1},
			Sort:       bson.D{{Key: sortField, Value: -1}},
			Limit:      int64(topN),
		},
		&records)
	if err != nil {
		r.logger.Error("Failed to select top symbols",
			zap.Error(err),
			zap.String("score_date", usedDate),
			zap.String("dimension", dimension))
		return "", nil, err
	}

	symbols := make([]string, 0, len(records))
	for _, rec := range records {
		symbols = append(symbols, rec.Symbol)
	}
	return usedDate, symbols, nil
}
