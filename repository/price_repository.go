package repository

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"stockdata/model"
	"stockdata/store"
)

const (
	dailyPriceCollection     = "volume_price"
	intradayPriceCollection  = "minute_bars"
	stockInfoCollection      = "stock_info"
	marketSpectrumCollection = "market_spectrum"
)

// frame column fields, in output order
var frameFields = []string{"open", "high", "low", "close", "volume"}

// PriceRepository handles read access to price bars, stock reference info
// and the market breadth summary. Symbol-to-ts_code resolutions are cached
// for the repository lifetime; InvalidateSymbols clears the cache when the
// store's mapping may have changed.
type PriceRepository struct {
	priceColl    store.Collection
	infoColl     store.Collection
	spectrumColl store.Collection
	logger       *zap.Logger

	cacheMu sync.Mutex
	tsCache map[string]string
}

// NewPriceRepository creates a new price repository. With minute set it
// reads the intraday bar collection instead of the daily one.
func NewPriceRepository(db store.Database, minute bool, logger *zap.Logger) *PriceRepository {
	priceName := dailyPriceCollection
	if minute {
		priceName = intradayPriceCollection
	}
	return &PriceRepository{
		priceColl:    db.Collection(priceName),
		infoColl:     db.Collection(stockInfoCollection),
		spectrumColl: db.Collection(marketSpectrumCollection),
		logger:       logger,
		tsCache:      make(map[string]string),
	}
}

// ResolveTSCode resolves a symbol to its canonical ts_code. Cached
// resolutions are returned without touching the store; an unknown symbol
// yields an empty code and no error.
func (r *PriceRepository) ResolveTSCode(ctx context.Context, symbol string) (string, error) {
	r.cacheMu.Lock()
	if ts, ok := r.tsCache[symbol]; ok {
		r.cacheMu.Unlock()
		return ts, nil
	}
	r.cacheMu.Unlock()

	var info model.StockInfo
	err := r.infoColl.FindOne(ctx,
		bson.M{"symbol": symbol},
		store.FindOptions{Projection: bson.M{"ts_code": 1}},
		&info)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve ts_code",
			zap.Error(err),
			zap.String("symbol", symbol))
		return "", err
	}

	if info.TSCode != "" {
		r.cacheMu.Lock()
		r.tsCache[symbol] = info.TSCode
		r.cacheMu.Unlock()
	}
	return info.TSCode, nil
}

// ResolveMany resolves a batch of symbols in one query. Every requested
// symbol appears in the result; unresolved ones map to the empty string.
func (r *PriceRepository) ResolveMany(ctx context.Context, symbols []string) (map[string]string, error) {
	r.cacheMu.Lock()
	missing := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := r.tsCache[s]; !ok {
			missing = append(missing, s)
		}
	}
	r.cacheMu.Unlock()

	if len(missing) > 0 {
		var infos []model.StockInfo
		err := r.infoColl.Find(ctx,
			bson.M{"symbol": bson.M{"$in": missing}},
			store.FindOptions{Projection: bson.M{"symbol": 1, "ts_code": 1}},
			&infos)
		if err != nil {
			r.logger.Error("Failed to resolve symbols",
				zap.Error(err),
				zap.Int("count", len(missing)))
			return nil, err
		}

		r.cacheMu.Lock()
		for _, info := range infos {
			if info.Symbol != "" && info.TSCode != "" {
				r.tsCache[info.Symbol] = info.TSCode
			}
		}
		r.cacheMu.Unlock()
	}

	out := make(map[string]string, len(symbols))
	r.cacheMu.Lock()
	for _, s := range symbols {
		out[s] = r.tsCache[s]
	}
	r.cacheMu.Unlock()
	return out, nil
}

// InvalidateSymbols clears the resolver cache
func (r *PriceRepository) InvalidateSymbols() {
	r.cacheMu.Lock()
	r.tsCache = make(map[string]string)
	r.cacheMu.Unlock()
}

// FetchNames returns symbol -> display name in one batched query.
// Symbols without a matching record are omitted.
func (r *PriceRepository) FetchNames(ctx context.Context, symbols []string) (map[string]string, error) {
	if len(symbols) == 0 {
		return map[string]string{}, nil
	}

	var infos []model.StockInfo
	err := r.infoColl.Find(ctx,
		bson.M{"symbol": bson.M{"$in": symbols}},
		store.FindOptions{Projection: bson.M{"symbol": 1, "name": 1}},
		&infos)
	if err != nil {
		r.logger.Error("Failed to fetch names", zap.Error(err), zap.Int("count", len(symbols)))
		return nil, err
	}

	out := make(map[string]string, len(infos))
	for _, info := range infos {
		if info.Symbol != "" {
			out[info.Symbol] = info.Name
		}
	}
	return out, nil
}

// FetchBatch returns symbol -> OHLCV table for the date range, from one
// batched query sorted by (symbol, trade_date). Daily and intraday date
// keys may be mixed. The pct_chg column is carried only when a sample
// probe sees it in the underlying data; a heterogeneous or concurrently
// mutated collection can race that probe.
func (r *PriceRepository) FetchBatch(ctx context.Context, symbols []string, startDate, endDate string) (map[string]*model.OHLCVTable, error) {
	if len(symbols) == 0 {
		return map[string]*model.OHLCVTable{}, nil
	}

	withPct := r.hasPctChg(ctx, symbols)

	projection := bson.M{
		"symbol": 1, "trade_date": 1,
		"open": 1, "high": 1, "low": 1, "close": 1, "volume": 1,
	}
	if withPct {
		projection["pct_chg"] = 1
	}

	var bars []model.PriceBar
	err := r.priceColl.Find(ctx,
		bson.M{
			"symbol":     bson.M{"$in": symbols},
			"trade_date": bson.M{"$gte": startDate, "$lte": endDate},
		},
		store.FindOptions{
			Projection: projection,
			Sort:       bson.D{{Key: "symbol", Value: 1}, {Key: "trade_date", Value: 1}},
		},
		&bars)
	if err != nil {
		r.logger.Error("Failed to fetch price batch",
			zap.Error(err),
			zap.Int("symbols", len(symbols)),
			zap.String("startDate", startDate),
			zap.String("endDate", endDate))
		return nil, err
	}

	out := make(map[string]*model.OHLCVTable)
	lastDate := make(map[string]string)
	for _, b := range bars {
		if b.Symbol == "" {
			continue
		}
		dt, perr := model.ParseTradeDate(b.TradeDate)
		if perr != nil {
			r.logger.Warn("Skipping bar with malformed trade_date",
				zap.String("symbol", b.Symbol),
				zap.String("trade_date", b.TradeDate))
			continue
		}
		// rows arrive sorted, so duplicates are adjacent
		if lastDate[b.Symbol] == b.TradeDate {
			continue
		}
		lastDate[b.Symbol] = b.TradeDate

		t := out[b.Symbol]
		if t == nil {
			t = &model.OHLCVTable{}
			if withPct {
				t.PctChg = []float64{}
			}
			out[b.Symbol] = t
		}
		t.Dates = append(t.Dates, dt)
		t.Open = append(t.Open, b.Open)
		t.High = append(t.High, b.High)
		t.Low = append(t.Low, b.Low)
		t.Close = append(t.Close, b.Close)
		t.Volume = append(t.Volume, b.Volume)
		if withPct {
			if b.PctChg != nil {
				t.PctChg = append(t.PctChg, *b.PctChg)
			} else {
				t.PctChg = append(t.PctChg, math.NaN())
			}
		}
	}
	return out, nil
}

// hasPctChg probes a single document to decide whether the batch query
// should carry the pct_chg column at all.
func (r *PriceRepository) hasPctChg(ctx context.Context, symbols []string) bool {
	var probe bson.M
	err := r.priceColl.FindOne(ctx,
		bson.M{
			"symbol":  bson.M{"$in": symbols},
			"pct_chg": bson.M{"$exists": true},
		},
		store.FindOptions{Projection: bson.M{"pct_chg": 1}},
		&probe)
	return err == nil
}

// FetchFrame outer-joins the per-symbol series of FetchBatch on the date
// axis into one wide frame. With forwardFill the last known value of each
// column propagates across gaps; rows that stay empty across every column
// are dropped.
func (r *PriceRepository) FetchFrame(ctx context.Context, symbols []string, startDate, endDate string, forwardFill bool) (*model.PriceFrame, error) {
	tables, err := r.FetchBatch(ctx, symbols, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return &model.PriceFrame{}, nil
	}

	dateSet := make(map[time.Time]struct{})
	for _, t := range tables {
		for _, d := range t.Dates {
			dateSet[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowOf[d] = i
	}

	frame := &model.PriceFrame{Dates: dates}
	for _, sym := range symbols {
		t, ok := tables[sym]
		if !ok {
			continue
		}
		fields := frameFields
		if t.HasPctChg() {
			fields = append(append([]string(nil), frameFields...), "pct_chg")
		}
		for _, field := range fields {
			col := model.FrameColumn{
				Symbol: sym,
				Field:  field,
				Values: make([]float64, len(dates)),
			}
			for i := range col.Values {
				col.Values[i] = math.NaN()
			}
			src := tableColumn(t, field)
			for i, d := range t.Dates {
				col.Values[rowOf[d]] = src[i]
			}
			frame.Columns = append(frame.Columns, col)
		}
	}

	if forwardFill {
		frame.ForwardFill()
	}
	frame.DropEmptyRows()
	return frame, nil
}

func tableColumn(t *model.OHLCVTable, field string) []float64 {
	switch field {
	case "open":
		return t.Open
	case "high":
		return t.High
	case "low":
		return t.Low
	case "close":
		return t.Close
	case "volume":
		return t.Volume
	case "pct_chg":
		return t.PctChg
	default:
		return nil
	}
}

// FetchLatestClose returns symbol -> close for one trade date. Symbols are
// queried exactly first; the ones still missing are retried with the
// exchange suffix stripped at the first dot, covering differently-suffixed
// historical data. Either way the result is keyed by the original input
// symbol, not the query-matched form.
func (r *PriceRepository) FetchLatestClose(ctx context.Context, symbols []string, dateStr string) (map[string]float64, error) {
	result := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	found, err := r.closeByCode(ctx, symbols, dateStr)
	if err != nil {
		return nil, err
	}

	// stripped form -> original inputs that reduced to it
	retry := make(map[string][]string)
	for _, s := range symbols {
		if c, ok := found[s]; ok {
			result[s] = c
			continue
		}
		if i := strings.Index(s, "."); i > 0 {
			base := s[:i]
			retry[base] = append(retry[base], s)
		}
	}
	if len(retry) == 0 {
		return result, nil
	}

	codes := make([]string, 0, len(retry))
	for base := range retry {
		codes = append(codes, base)
	}
	fallback, err := r.closeByCode(ctx, codes, dateStr)
	if err != nil {
		return nil, err
	}
	for base, px := range fallback {
		for _, orig := range retry[base] {
			result[orig] = px
		}
	}
	return result, nil
}

func (r *PriceRepository) closeByCode(ctx context.Context, codes []string, dateStr string) (map[string]float64, error) {
	var bars []model.PriceBar
	err := r.priceColl.Find(ctx,
		bson.M{"ts_code": bson.M{"$in": codes}, "trade_date": dateStr},
		store.FindOptions{Projection: bson.M{"ts_code": 1, "close": 1}},
		&bars)
	if err != nil {
		r.logger.Error("Failed to fetch latest close",
			zap.Error(err),
			zap.String("trade_date", dateStr))
		return nil, err
	}

	out := make(map[string]float64, len(bars))
	for _, b := range bars {
		if b.TSCode != "" {
			out[b.TSCode] = b.Close
		}
	}
	return out, nil
}

// FetchMarketSpectrum returns the market breadth summary rows in the date
// range, ascending by parsed trade date.
func (r *PriceRepository) FetchMarketSpectrum(ctx context.Context, startDate, endDate string) ([]model.SpectrumRow, error) {
	var docs []model.MarketSpectrum
	err := r.spectrumColl.Find(ctx,
		bson.M{"trade_date": bson.M{"$gte": startDate, "$lte": endDate}},
		store.FindOptions{Sort: bson.D{{Key: "trade_date", Value: 1}}},
		&docs)
	if err != nil {
		r.logger.Error("Failed to fetch market spectrum",
			zap.Error(err),
			zap.String("startDate", startDate),
			zap.String("endDate", endDate))
		return nil, err
	}

	out := make([]model.SpectrumRow, 0, len(docs))
	for _, d := range docs {
		dt, perr := model.ParseTradeDate(d.TradeDate)
		if perr != nil {
			r.logger.Warn("Skipping spectrum row with malformed trade_date",
				zap.String("trade_date", d.TradeDate))
			continue
		}
		out = append(out, model.SpectrumRow{
			Date:         dt,
			YinSpectrum:  d.YinSpectrum,
			YangSpectrum: d.YangSpectrum,
			TotalStocks:  d.TotalStocks,
		})
	}
	return out, nil
}
