package model

import "time"

// PriceBar represents one OHLCV document keyed by (symbol, trade_date)
type PriceBar struct {
	Symbol    string   `bson:"symbol"`
	TSCode    string   `bson:"ts_code,omitempty"`
	TradeDate string   `bson:"trade_date"`
	Open      float64  `bson:"open"`
	High      float64  `bson:"high"`
	Low       float64  `bson:"low"`
	Close     float64  `bson:"close"`
	Volume    float64  `bson:"volume"`
	PctChg    *float64 `bson:"pct_chg,omitempty"`
}

// StockInfo is the reference record mapping a symbol to its canonical
// ts_code and display name
type StockInfo struct {
	Symbol string `bson:"symbol"`
	TSCode string `bson:"ts_code,omitempty"`
	Name   string `bson:"name,omitempty"`
}

// IndexPrice is a benchmark index close observation
type IndexPrice struct {
	TSCode    string  `bson:"ts_code,omitempty"`
	TradeDate string  `bson:"trade_date"`
	Close     float64 `bson:"close"`
}

// MarketSpectrum is a one-row-per-date market breadth summary
type MarketSpectrum struct {
	TradeDate    string  `bson:"trade_date"`
	YinSpectrum  float64 `bson:"yin_spectrum"`
	YangSpectrum float64 `bson:"yang_spectrum"`
	TotalStocks  int     `bson:"total_stocks"`
}

// SpectrumRow is a breadth summary with its trade date parsed
type SpectrumRow struct {
	Date         time.Time
	YinSpectrum  float64
	YangSpectrum float64
	TotalStocks  int
}
