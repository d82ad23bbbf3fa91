package repository

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/store"
)

// Fundamental statement collections
const (
	CashFlowCollection         = "financial_cashflow"
	IncomeCollection           = "financial_income"
	BalanceSheetCollection     = "financial_balance"
	IndicatorCollection        = "financial_indicator"
	DailyBasicCollection       = "financial_daily_basic"
	IndexConstituentCollection = "index_constituents"
)

// FinancialRepository handles read access to fundamental statement
// documents and index membership.
type FinancialRepository struct {
	db     store.Database
	logger *zap.Logger
}

// NewFinancialRepository creates a new financial repository
func NewFinancialRepository(db store.Database, logger *zap.Logger) *FinancialRepository {
	return &FinancialRepository{
		db:     db,
		logger: logger,
	}
}

// FetchDocs retrieves matching documents ordered descending by sortField
// (default end_date), truncated to the most recent periods when periods is
// positive. A store-side sort+limit is attempted first; if the store
// cannot serve it, the documents are fetched plain and sorted locally by
// the same field, with a missing field sorting last. Both paths order
// well-formed data identically.
func (r *FinancialRepository) FetchDocs(ctx context.Context, collection string, filter bson.M, periods int, sortField string) ([]bson.M, error) {
	if sortField == "" {
		sortField = "end_date"
	}
	coll := r.db.Collection(collection)

	if periods > 0 {
		var docs []bson.M
		err := coll.Find(ctx, filter,
			store.FindOptions{
				Sort:  bson.D{{Key: sortField, Value: -1}},
				Limit: int64(periods),
			},
			&docs)
		if err == nil {
			return docs, nil
		}
		r.logger.Warn("Store-side sort+limit failed, sorting locally",
			zap.Error(err),
			zap.String("collection", collection))
	}

	var docs []bson.M
	if err := r.db.Collection(collection).Find(ctx, filter, store.FindOptions{}, &docs); err != nil {
		r.logger.Error("Failed to fetch documents",
			zap.Error(err),
			zap.String("collection", collection))
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docFieldString(docs[i], sortField) > docFieldString(docs[j], sortField)
	})
	if periods > 0 && len(docs) > periods {
		docs = docs[:periods]
	}
	return docs, nil
}

// docFieldString reads a string sort key, falling back to the empty string
// so documents missing the field sort last on descending order.
func docFieldString(doc bson.M, field string) string {
	if v, ok := doc[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CashFlow returns the most recent cash flow statements for a ts_code
func (r *FinancialRepository) CashFlow(ctx context.Context, tsCode string, periods int) ([]bson.M, error) {
	return r.FetchDocs(ctx, CashFlowCollection, bson.M{"ts_code": tsCode}, periods, "end_date")
}

// Income returns the most recent income statements for a ts_code
func (r *FinancialRepository) Income(ctx context.Context, tsCode string, periods int) ([]bson.M, error) {
	return r.FetchDocs(ctx, IncomeCollection, bson.M{"ts_code": tsCode}, periods, "end_date")
}

// BalanceSheet returns the most recent balance sheets for a ts_code
func (r *FinancialRepository) BalanceSheet(ctx context.Context, tsCode string, periods int) ([]bson.M, error) {
	return r.FetchDocs(ctx, BalanceSheetCollection, bson.M{"ts_code": tsCode}, periods, "end_date")
}

// Indicators returns the most recent financial indicator rows for a ts_code
func (r *FinancialRepository) Indicators(ctx context.Context, tsCode string, periods int) ([]bson.M, error) {
	return r.FetchDocs(ctx, IndicatorCollection, bson.M{"ts_code": tsCode}, periods, "end_date")
}

// DailyBasic returns the most recent daily valuation basics for a ts_code.
// The period marker on this collection is trade_date, not end_date.
func (r *FinancialRepository) DailyBasic(ctx context.Context, tsCode string, periods int) ([]bson.M, error) {
	return r.FetchDocs(ctx, DailyBasicCollection, bson.M{"ts_code": tsCode}, periods, "trade_date")
}

// IndexConstituents returns the member ts_codes of an index
func (r *FinancialRepository) IndexConstituents(ctx context.Context, indexCode string) ([]string, error) {
	var docs []bson.M
	err := r.db.Collection(IndexConstituentCollection).Find(ctx,
		bson.M{"index_code": indexCode},
		store.FindOptions{
			Projection: bson.M{"con_code": 1},
			Sort:       bson.D{{Key: "con_code", Value: 1}},
		},
		&docs)
	if err != nil {
		r.logger.Error("Failed to fetch index constituents",
			zap.Error(err),
			zap.String("index_code", indexCode))
		return nil, err
	}

	symbols := make([]string, 0, len(docs))
	for _, doc := range docs {
		if code := docFieldString(doc, "con_code"); code != "" {
			symbols = append(symbols, code)
		}
	}
	return symbols, nil
}
